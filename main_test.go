package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagOverrides(t *testing.T) {
	flagSet := flag.NewFlagSet("banklink", flag.ContinueOnError)
	flagSet.Uint("port", 0, "")
	flagSet.String("data", "", "")
	flagSet.Bool("sandbox", false, "")
	flagSet.Bool("unmapped", false, "")
	require.NoError(t, flagSet.Parse([]string{"-port", "9000", "-sandbox", "-unmapped"}))

	overrides := flagOverrides(flagSet, map[string]string{
		"port":    "server.port",
		"data":    "data.dir",
		"sandbox": "online.sandbox",
	})
	assert.Equal(t, map[string]interface{}{
		"server.port":    uint(9000),
		"online.sandbox": true,
	}, overrides)
}

func TestUsage(t *testing.T) {
	flagSet := flag.NewFlagSet("banklink", flag.ContinueOnError)
	flagSet.Bool("server", false, "Starts the server")
	assert.Contains(t, usage(flagSet), "Starts the server")
}
