package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitt-crc/starfish-api-client/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("info"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
}

func TestConsoleLoggerWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	l := consoleLogger(&buf, false)
	l.Info().Str("volume", "home").Msg("listing")

	out := buf.String()
	assert.Contains(t, out, "listing")
	assert.Contains(t, out, "volume=home")
	assert.NotContains(t, out, "\x1b[")
}

func TestPrintRows(t *testing.T) {
	rows := []map[string]any{
		{"fn": "a.txt", "size": float64(10), "owner": "alice"},
		{"fn": "b.txt", "size": 1.5, "tags": []any{"x"}},
	}

	var buf bytes.Buffer
	require.NoError(t, printRows(&buf, rows, []string{"fn", "size", "mt"}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"FN", "SIZE", "OWNER", "TAGS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"a.txt", "10", "alice", "-"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"b.txt", "1.50", "-", `["x"]`}, strings.Fields(lines[2]))
}

func TestPrintRowsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRows(&buf, nil, []string{"fn"}))
	assert.Equal(t, "No rows matched.\n", buf.String())
}

func TestGetRowFilter(t *testing.T) {
	cfg = &config.Config{Filter: config.FilterConfig{"big": "size > GiB(1)"}}
	t.Cleanup(func() { cfg, filterExpr, preset = nil, "", "" })

	filterExpr, preset = "", ""
	f, err := getRowFilter()
	require.NoError(t, err)
	assert.Nil(t, f)

	preset = "big"
	f, err = getRowFilter()
	require.NoError(t, err)
	assert.Equal(t, "size > GiB(1)", f.Expression())

	filterExpr = `fn == "x"`
	f, err = getRowFilter()
	require.NoError(t, err)
	assert.Equal(t, `fn == "x"`, f.Expression())

	filterExpr, preset = "", "missing"
	_, err = getRowFilter()
	assert.ErrorContains(t, err, "preset 'missing' not found")

	filterExpr = "size >"
	_, err = getRowFilter()
	assert.ErrorContains(t, err, "invalid filter expression")
}
