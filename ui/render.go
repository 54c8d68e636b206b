package ui

import (
	"encoding/json"
	"fmt"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	minRenderWidth = 20
	markdownPad    = 2
	ellipsis       = "…"
)

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryReasoning
	entryTool
	entryError
	entryNotice
)

// entry is one block of the transcript as displayed.
type entry struct {
	kind entryKind
	text string
	// rendered holds the markdown rendering of a finished answer.
	rendered string
}

func renderEntries(entries []entry, width int) string {
	if len(entries) == 0 {
		return DimStyle.Render("No messages yet. Start chatting!")
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderEntry(e, width))
	}
	return b.String()
}

func renderEntry(e entry, width int) string {
	width = max(width, minRenderWidth)
	wrap := lipgloss.NewStyle().Width(width)

	switch e.kind {
	case entryUser:
		return UserStyle.Render("You") + "\n" + wrap.Render(e.text) + "\n"
	case entryAssistant:
		body := e.rendered
		if body == "" {
			body = wrap.Render(e.text)
		}
		return AssistantStyle.Render("Assistant") + "\n" + body + "\n"
	case entryReasoning:
		return DimStyle.Render(wrap.Render(e.text)) + "\n"
	case entryTool:
		return ToolStyle.Render(truncate(e.text, width))
	case entryError:
		return ErrorStyle.Render(wrap.Render(e.text)) + "\n"
	default:
		return DimStyle.Render(truncate(e.text, width))
	}
}

// renderMarkdown renders a finished answer for a terminal of the given
// width.
func renderMarkdown(text string, width int) string {
	width = max(width-2*markdownPad, minRenderWidth)
	out := markdown.Render(text, width, markdownPad)
	return strings.TrimRight(string(out), "\n")
}

// toolNotice is the one-line summary of a tool invocation or its result.
func toolNotice(arrow, name string, detail any, width int) string {
	line := arrow + " " + name
	if s := compact(detail); s != "" {
		line += " " + s
	}
	return truncate(line, width)
}

func compact(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.Join(strings.Fields(v), " ")
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// truncate cuts s to width terminal cells, wide runes counted as two.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, ellipsis)
}
