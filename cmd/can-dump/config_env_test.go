package main

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := defaultConfig()
	t.Setenv("CAN_DUMP_DEVICE", "/dev/ttyUSB1")
	t.Setenv("CAN_DUMP_BAUD", "230400")
	t.Setenv("CAN_DUMP_MDNS_ENABLE", "true")
	t.Setenv("CAN_DUMP_SERIAL_READ_TIMEOUT", "100ms")
	t.Setenv("CAN_DUMP_LOG_METRICS_INTERVAL", "5s")
	t.Setenv("CAN_DUMP_MASK", "3, 32")
	t.Setenv("CAN_DUMP_RECORD_FORMAT", "cbor")
	t.Setenv("CAN_DUMP_MQTT_BROKER", "tcp://broker:1883")

	require.NoError(t, applyEnvOverrides(base, map[string]struct{}{}))
	assert.Equal(t, "/dev/ttyUSB1", base.device)
	assert.Equal(t, 230400, base.baud)
	assert.True(t, base.mdnsEnable)
	assert.Equal(t, 100*time.Millisecond, base.serialReadTO)
	assert.Equal(t, 5*time.Second, base.logMetricsEvery)
	assert.Equal(t, []int{3, 32}, base.mask)
	assert.Equal(t, "cbor", base.recordFormat)
	assert.Equal(t, "tcp://broker:1883", base.mqttBroker)
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	c := defaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(fs, c)
	require.NoError(t, fs.Parse([]string{"--baud", "9600", "-m", "7"}))

	t.Setenv("CAN_DUMP_BAUD", "230400")
	t.Setenv("CAN_DUMP_MASK", "1,2")
	t.Setenv("CAN_DUMP_LOG_DIR", "/var/log/can")

	require.NoError(t, applyEnvOverrides(c, changedFlags(fs)))
	assert.Equal(t, 9600, c.baud)
	assert.Equal(t, []int{7}, c.mask)
	assert.Equal(t, "/var/log/can", c.logDir)
}

func TestApplyEnvOverrides_BadValues(t *testing.T) {
	for key, val := range map[string]string{
		"CAN_DUMP_BAUD":                 "notint",
		"CAN_DUMP_SERIAL_READ_TIMEOUT":  "soon",
		"CAN_DUMP_LOG_METRICS_INTERVAL": "-1s",
		"CAN_DUMP_MASK":                 "3,x",
		"CAN_DUMP_MDNS_ENABLE":          "maybe",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			err := applyEnvOverrides(defaultConfig(), map[string]struct{}{})
			assert.ErrorContains(t, err, key)
		})
	}
}
