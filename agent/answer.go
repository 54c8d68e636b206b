package agent

import (
	"strings"
	"unicode"
)

// leakMarkers are the characters a tool call printed as text starts with.
const leakMarkers = "{[<"

// answerGuard streams answer text while a model may still print a tool call
// as text. Text is forwarded up to the first leak marker, with trailing
// whitespace held back; everything after the marker waits for finish.
type answerGuard struct {
	emit func(string)
	all  strings.Builder
	sent int
	held bool
}

func (g *answerGuard) write(text string) {
	start := g.all.Len()
	g.all.WriteString(text)
	if g.held {
		return
	}

	s := g.all.String()
	end := len(s)
	if i := strings.IndexAny(s[start:], leakMarkers); i >= 0 {
		end = start + i
		g.held = true
	}
	safe := strings.TrimRightFunc(s[:end], unicode.IsSpace)
	if len(safe) > g.sent {
		g.emit(s[g.sent:len(safe)])
		g.sent = len(safe)
	}
}

// finish emits what is left of content, the final text of the turn, and
// returns the text the stream now carries in total. Cleaning may have trimmed
// leading whitespace that was already sent; it is kept in the result.
func (g *answerGuard) finish(content string) string {
	sent := g.all.String()[:g.sent]
	if strings.HasPrefix(content, sent) {
		g.flush(content[len(sent):])
		return content
	}

	trimmed := strings.TrimLeftFunc(sent, unicode.IsSpace)
	if strings.HasPrefix(content, trimmed) {
		g.flush(content[len(trimmed):])
		return sent[:len(sent)-len(trimmed)] + content
	}

	logger().Warn().Int("sent", len(sent)).Msg("streamed answer diverges from cleaned content")
	return content
}

func (g *answerGuard) flush(rest string) {
	if rest != "" {
		g.emit(rest)
	}
}
