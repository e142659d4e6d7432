package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"generate", "assess", "serve", "export", "report"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadscore", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAssessCommand_Flags(t *testing.T) {
	flag := assessCmd.Flags().Lookup("lead-id")
	require.NotNil(t, flag, "assess command should have --lead-id flag")
	assert.Equal(t, "0", flag.DefValue)

	limit := assessCmd.Flags().Lookup("limit")
	require.NotNil(t, limit, "assess command should have --limit flag")
}

func TestGenerateCommand_Flags(t *testing.T) {
	flag := generateCmd.Flags().Lookup("max-queries")
	require.NotNil(t, flag, "generate command should have --max-queries flag")
	assert.Equal(t, "5", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	out := exportCmd.Flags().Lookup("out")
	require.NotNil(t, out, "export command should have --out flag")
	assert.Equal(t, "leads.csv", out.DefValue)

	for _, name := range []string{"min-score", "status"} {
		assert.NotNil(t, exportCmd.Flags().Lookup(name), "export should have --%s flag", name)
	}
}

func TestReportCommand_Flags(t *testing.T) {
	require.NotNil(t, reportCmd.Flags().Lookup("out"))
}
