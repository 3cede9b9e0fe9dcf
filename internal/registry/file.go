package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// File is the on-disk registry schema.
//
// TOML:
//
//	version = "2019-07"
//	base = "default"
//
//	[[message]]
//	id = 33
//	name = "Battery Voltage/Current"
//	layout = "<ii"
//	format = "battery_vc"
//
// YAML uses the same keys with a "messages" list.
type File struct {
	Version  string        `toml:"version" yaml:"version"`
	Base     string        `toml:"base" yaml:"base"`
	Messages []FileMessage `toml:"message" yaml:"messages"`
}

// FileMessage is one table row. Layout takes the struct-style or the
// field-name form accepted by ParseLayout.
type FileMessage struct {
	ID     int    `toml:"id" yaml:"id"`
	Name   string `toml:"name" yaml:"name"`
	Layout string `toml:"layout" yaml:"layout"`
	Format string `toml:"format" yaml:"format"`
}

// Load reads a registry file; the format follows the extension
// (.toml, .yaml, .yml).
func Load(path string) (*Registry, error) {
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("registry %s: %w", path, err)
		}
	case ".yaml", ".yml":
		d, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("registry %s: %w", path, err)
		}
		if err := yaml.UnmarshalStrict(d, &f); err != nil {
			return nil, fmt.Errorf("registry %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("registry %s: unsupported extension (want .toml, .yaml or .yml)", path)
	}
	r, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return r, nil
}

// Build turns the parsed file into a registry. With base "default" the rows
// are layered over the built-in table, replacing entries with the same id.
func (f File) Build() (*Registry, error) {
	if f.Version == "" {
		return nil, fmt.Errorf("missing version")
	}
	rows := make(map[uint8]Descriptor)
	switch f.Base {
	case "":
	case "default":
		for _, d := range Default().All() {
			rows[d.ID] = d
		}
	default:
		return nil, fmt.Errorf("unknown base %q", f.Base)
	}
	seen := make(map[int]bool, len(f.Messages))
	for _, m := range f.Messages {
		if m.ID < 0 || m.ID > MaxMessageID {
			return nil, fmt.Errorf("message %d (%q): id outside 0..%d", m.ID, m.Name, MaxMessageID)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("message %d (%q): duplicate id", m.ID, m.Name)
		}
		seen[m.ID] = true
		l, err := ParseLayout(m.Layout)
		if err != nil {
			return nil, fmt.Errorf("message %d (%q): %w", m.ID, m.Name, err)
		}
		rows[uint8(m.ID)] = Descriptor{ID: uint8(m.ID), Name: m.Name, Layout: l, Kind: m.Format}
	}
	descs := make([]Descriptor, 0, len(rows))
	for _, d := range rows {
		descs = append(descs, d)
	}
	return New(f.Version, descs)
}
