package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Format(t *testing.T) {
	msg := Message{
		Title:       "migration failed",
		Problem:     "statement 3 failed",
		Consequence: "No tables were changed.",
		Suggestions: []string{"books", "boxes"},
		Hints:       []string{"Validate resources: nestapi check"},
	}

	assert.Equal(t, "❌ MIGRATION FAILED: statement 3 failed\n"+
		"\n   No tables were changed.\n"+
		"\n   Did you mean: books, boxes?\n"+
		"\n   → Validate resources: nestapi check\n",
		msg.Format(true))

	assert.Equal(t, "⚠️ cache disabled\n", Message{Level: LevelWarning, Problem: "cache disabled"}.Format(true))
	assert.Equal(t, "ℹ️ nothing dropped\n", Info("nothing dropped", true))
}

func TestHelpers(t *testing.T) {
	assert.Contains(t, ResourceNotFoundError("bokos", []string{"books"}, true), "Did you mean: books?")
	assert.Contains(t, MigrationError("boom", "nothing applied", nil, true), "MIGRATION FAILED: boom")
	assert.Contains(t, ConfigError("no resources configured", nil, true), "nestapi.yaml")
	assert.Contains(t, Warning("careful", nil, true), "careful")
	assert.Equal(t, "✓ done", FormatSuccess("done", true))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	Message{Problem: "broken"}.Write(&buf, true)
	WriteSuccess(&buf, "fixed", true)

	assert.Equal(t, "❌ broken\n✓ fixed\n", buf.String())
}

func TestSuggest(t *testing.T) {
	candidates := []string{"authors", "books", "publishers", "tags"}

	assert.Equal(t, []string{"books"}, Suggest("bokos", candidates))
	assert.Equal(t, []string{"tags"}, Suggest("Tag", candidates))
	assert.Empty(t, Suggest("reviews", candidates))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, distance("books", "books"))
	assert.Equal(t, 1, distance("book", "books"))
	assert.Equal(t, 3, distance("kitten", "sitting"))
	assert.Equal(t, 4, distance("", "tags"))
}
