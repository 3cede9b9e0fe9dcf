// Command can-dump decodes system CAN traffic from a SocketCAN interface or
// a COBS framed serial link, prints one line per frame and records every
// frame to a log file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	cfg := defaultConfig()
	root := &cobra.Command{
		Use:   "can-dump [device]",
		Short: "Decode and log system CAN messages",
		Long: `can-dump reads CAN frames from a SocketCAN interface (e.g. can0, slcan0)
or a serial device carrying COBS framed packets (e.g. /dev/ttyACM0), prints a
decoded line per frame and appends every frame to a record log.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			set := changedFlags(cmd.Flags())
			if len(args) == 1 {
				cfg.device = args[0]
				set["device"] = struct{}{}
			}
			if err := applyEnvOverrides(cfg, set); err != nil {
				return fmt.Errorf("environment override error: %w", err)
			}
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			l := setupLogger(cfg.logFormat, cfg.logLevel)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, stdout, l)
		},
	}
	root.SetContext(context.Background())
	root.PersistentFlags().StringVar(&cfg.registryPath, "registry", cfg.registryPath, "Message registry file (.toml|.yaml); empty uses the built-in table")
	bindFlags(root.Flags(), cfg)

	root.AddCommand(newRegistryCmd(cfg, stdout), newVersionCmd(stdout))
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "can-dump %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func newRegistryCmd(cfg *appConfig, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "Print the active message registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnvOverrides(cfg, changedFlags(cmd.Flags())); err != nil {
				return fmt.Errorf("environment override error: %w", err)
			}
			reg, err := loadRegistry(cfg.registryPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "version %s\n", reg.Version())
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLAYOUT\tFORMAT")
			for _, d := range reg.All() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.Name, d.Layout, d.Kind)
			}
			return tw.Flush()
		},
	}
}
