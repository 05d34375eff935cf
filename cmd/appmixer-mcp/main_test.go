package main

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/appmixer-mcp/internal/registry"
	"github.com/standardbeagle/appmixer-mcp/internal/server"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "appmixer-mcp version "+server.Version+"\n", out)
}

func TestConfigPathsCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	out, err := execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "user:")
	assert.Contains(t, out, "appmixer-mcp")
	assert.Contains(t, out, "project:")
	assert.Contains(t, out, ".appmixer-mcp.kdl")
}

func TestCallCommand_BadArguments(t *testing.T) {
	_, err := execute(t, "call", "get-flow", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing arguments")
}

func TestServeCommand_MissingConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	for _, v := range []string{"APPMIXER_BASE_URL", "APPMIXER_ACCESS_TOKEN", "APPMIXER_USERNAME", "APPMIXER_PASSWORD"} {
		t.Setenv(v, "")
	}

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base-url")
}

func TestPrintTools(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printTools(&out, registry.StaticDescriptors()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "get-flows")
	assert.Contains(t, lines[1], "appmixer")

	out.Reset()
	require.NoError(t, printTools(&out, nil))
	assert.Equal(t, "No tools found.\n", out.String())
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one\ntwo"))
	long := strings.Repeat("x", 100)
	assert.Len(t, firstLine(long), 80)

	wide := firstLine(strings.Repeat("é", 100))
	assert.True(t, utf8.ValidString(wide))
	assert.Equal(t, 80, utf8.RuneCountInString(wide))
	assert.True(t, strings.HasSuffix(wide, "..."))
}
