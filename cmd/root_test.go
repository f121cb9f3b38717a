//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"analyze", "explore", "enrich", "inspect", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "density-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for name, def := range map[string]string{
		"radius-miles":  "10",
		"spacing-miles": "25",
		"top":           "5",
		"surface":       "asphalt",
		"workers":       "0",
		"no-store":      "false",
	} {
		flag := analyzeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "analyze command should have --%s flag", name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	for _, name := range []string{"source", "geojson", "html", "yaml"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze command should have --%s flag", name)
	}
}

func TestExploreCommand_Flags(t *testing.T) {
	flag := exploreCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "explore command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestEnrichCommand_Flags(t *testing.T) {
	for _, name := range []string{"osm", "gov", "out", "postgis-table"} {
		assert.NotNil(t, enrichCmd.Flags().Lookup(name), "enrich command should have --%s flag", name)
	}
	assert.Equal(t, "enriched_roads.geojson", enrichCmd.Flags().Lookup("out").DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}
