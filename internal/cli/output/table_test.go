package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable_EmptyRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, regionRows{}))
	assert.Contains(t, buf.String(), "ID")
	assert.Contains(t, buf.String(), "STATE")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	err := SimpleTable(&buf, [][2]string{
		{"Server", "http://localhost:8080"},
		{"Tile limit", "6000"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Server")
	assert.Contains(t, out, "http://localhost:8080")
	assert.Contains(t, out, "Tile limit")
	assert.Contains(t, out, "6000")
}

func TestMessages(t *testing.T) {
	var plain, colored bytes.Buffer

	Success(&plain, "Region 4 deleted", false)
	Warning(&plain, "no regions", false)
	assert.Equal(t, "Region 4 deleted\nno regions\n", plain.String())

	Success(&colored, "ok", true)
	assert.Equal(t, "\033[32mok\033[0m\n", colored.String())
}
