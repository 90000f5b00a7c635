package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

type style struct {
	symbol string
	color  color.Attribute
}

var styles = map[Level]style{
	LevelError:   {"❌", color.FgRed},
	LevelWarning: {"⚠️", color.FgYellow},
	LevelInfo:    {"ℹ️", color.FgCyan},
}

// Message is a diagnostic printed to the terminal:
//
//	❌ RESOURCE NOT FOUND: no resource type 'bokos'
//
//	   Did you mean: books?
//
//	   → See all resources: nestapi check
type Message struct {
	Level       Level
	Title       string
	Problem     string
	Consequence string
	Suggestions []string
	Hints       []string
}

// Format renders the message, without ANSI colors when noColor is set
func (m Message) Format(noColor bool) string {
	st := styles[m.Level]
	paint := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c
	}
	header := paint(st.color, color.Bold)
	body := paint(st.color)

	var b strings.Builder
	if m.Title != "" {
		header.Fprintf(&b, "%s %s: %s\n", st.symbol, strings.ToUpper(m.Title), m.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", st.symbol, m.Problem)
	}
	if m.Consequence != "" {
		body.Fprintf(&b, "\n   %s\n", m.Consequence)
	}
	if len(m.Suggestions) > 0 {
		paint(color.FgYellow).Fprintf(&b, "\n   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Hints) > 0 {
		b.WriteString("\n")
		hint := paint(color.FgCyan)
		for _, h := range m.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write prints the message to w
func (m Message) Write(w io.Writer, noColor bool) {
	fmt.Fprint(w, m.Format(noColor))
}

// FormatSuccess renders a success line
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess prints a success line to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ResourceNotFoundError reports an unknown resource type
func ResourceNotFoundError(typ string, suggestions []string, noColor bool) string {
	return Message{
		Title:       "resource not found",
		Problem:     fmt.Sprintf("no resource type '%s'", typ),
		Suggestions: suggestions,
		Hints:       []string{"See all resources: nestapi check"},
	}.Format(noColor)
}

// MigrationError reports a failed migrate run
func MigrationError(problem, consequence string, suggestions []string, noColor bool) string {
	return Message{
		Title:       "migration failed",
		Problem:     problem,
		Consequence: consequence,
		Suggestions: suggestions,
		Hints:       []string{"Validate resources: nestapi check"},
	}.Format(noColor)
}

// ConfigError reports a config that could not be loaded
func ConfigError(problem string, suggestions []string, noColor bool) string {
	return Message{
		Title:       "configuration error",
		Problem:     problem,
		Suggestions: suggestions,
		Hints:       []string{"Config is read from ./nestapi.yaml or --config, NESTAPI_* variables override it"},
	}.Format(noColor)
}

// Warning renders a warning
func Warning(problem string, suggestions []string, noColor bool) string {
	return Message{Level: LevelWarning, Problem: problem, Suggestions: suggestions}.Format(noColor)
}

// Info renders an informational line
func Info(problem string, noColor bool) string {
	return Message{Level: LevelInfo, Problem: problem}.Format(noColor)
}

// Suggest returns the candidates within two edits of name, closest first
func Suggest(name string, candidates []string) []string {
	type scored struct {
		name     string
		distance int
	}
	var matches []scored
	for _, c := range candidates {
		if d := distance(strings.ToLower(name), strings.ToLower(c)); d <= 2 {
			matches = append(matches, scored{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}

// distance is the Levenshtein distance between a and b
func distance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
