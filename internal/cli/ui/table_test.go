package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "TYPE", "ATTRIBUTES")
	table.AddRow("books", "title, pages")
	table.AddRow("authors")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "TYPE     ATTRIBUTES", lines[0])
	assert.Equal(t, strings.Repeat("─", 7)+"  "+strings.Repeat("─", 12), lines[1])
	assert.Equal(t, "books    title, pages", lines[2])
	assert.Equal(t, "authors  ", lines[3])
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true)
	table.AddRow("ignored")
	table.Render()
	assert.Empty(t, buf.String())
}
