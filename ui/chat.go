// Package ui is the terminal chat client. It sends each prompt to the
// server, plays the response back through a stream.Scheduler and renders the
// transcript with bubbletea.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentrelay/config"
	"agentrelay/storage"
	"agentrelay/stream"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

const (
	inputHeight    = 3
	chromeHeight   = 3 // title, spacer, status bar
	activityBuffer = 256
	defaultWidth   = 80
)

// ChatOptions configures a ChatView.
type ChatOptions struct {
	// Model is passed through to the server, e.g. "openai:gpt-4o". Empty
	// uses the server default.
	Model string
	// SessionID continues a stored conversation. Empty starts a new one.
	SessionID string
	Tools     []string
	// Buffered asks the server for whole answers instead of fragments.
	Buffered bool
	Keys     config.KeyBindingsConfig
}

// ChatView is the bubbletea model of the chat client.
type ChatView struct {
	client *stream.Client
	opts   ChatOptions
	keys   config.KeyBindingsConfig

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	entries   []entry
	sessionID string
	width     int
	height    int
	focused   bool

	// Response in flight.
	streaming  bool
	cancel     context.CancelFunc
	sched      *stream.Scheduler
	activity   chan tea.Msg
	activeTool string
	lastAnswer string
	flash      string
}

// NewChatView returns a chat view talking to the server behind client.
func NewChatView(client *stream.Client, opts ChatOptions) ChatView {
	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.SetWidth(defaultWidth)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = storage.NewSessionID()
	}

	keys := opts.Keys
	if keys.Primary == "" {
		keys = *config.DefaultKeybindings()
	}

	return ChatView{
		client:    client,
		opts:      opts,
		keys:      keys,
		viewport:  viewport.New(defaultWidth, 10),
		input:     ta,
		spinner:   sp,
		sessionID: sessionID,
		width:     defaultWidth,
		focused:   true,
	}
}

func (v ChatView) Init() tea.Cmd {
	return textarea.Blink
}

// SessionID is the server-side session the view writes to.
func (v ChatView) SessionID() string {
	return v.sessionID
}

func (v ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.resize(msg.Width, msg.Height)
		return v, nil

	case tea.FocusMsg:
		v.setVisible(true)
		return v, nil

	case tea.BlurMsg:
		v.setVisible(false)
		return v, nil

	case tea.KeyMsg:
		if cmd, handled := v.handleKey(msg); handled {
			return v, cmd
		}

	case streamEventMsg:
		v.apply(msg.event)
		v.refresh()
		return v, waitForActivity(v.activity)

	case streamEndMsg:
		v.finish(msg.err)
		v.refresh()
		return v, nil

	case spinner.TickMsg:
		if !v.streaming {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *ChatView) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", v.keys.GetActionKey("quit"):
		v.stop()
		return tea.Quit, true
	case v.keys.GetActionKey("send"):
		return v.send(), true
	case v.keys.GetActionKey("cancel"):
		v.stop()
		return nil, true
	case v.keys.GetActionKey("yank_last_response"):
		v.yank()
		return nil, true
	case v.keys.GetActionKey("scroll_down"):
		v.viewport.HalfPageDown()
		return nil, true
	case v.keys.GetActionKey("scroll_up"):
		v.viewport.HalfPageUp()
		return nil, true
	case v.keys.GetActionKey("new_session"):
		if v.streaming {
			return nil, true
		}
		v.sessionID = storage.NewSessionID()
		v.entries = nil
		v.lastAnswer = ""
		v.flash = "new session"
		v.refresh()
		return nil, true
	}
	return nil, false
}

func (v *ChatView) send() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" || v.streaming {
		return nil
	}
	v.input.Reset()

	ctx, req := v.begin(text)
	v.refresh()
	return tea.Batch(
		streamResponse(ctx, v.client, req, v.sched, v.activity),
		waitForActivity(v.activity),
		v.spinner.Tick,
	)
}

// stop cancels the response in flight. Events already received are still
// delivered, followed by a streamEndMsg.
func (v *ChatView) stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

func (v *ChatView) yank() {
	if v.lastAnswer == "" {
		v.flash = "nothing to copy"
		return
	}
	if err := clipboard.WriteAll(v.lastAnswer); err != nil {
		logger().Warn().Err(err).Msg("failed to copy to clipboard")
		v.flash = "copy failed"
		return
	}
	v.flash = "copied last answer"
}

// setVisible switches playback between throttled and eager. A hidden
// terminal has no use for the typewriter effect.
func (v *ChatView) setVisible(visible bool) {
	v.focused = visible
	if v.sched != nil {
		v.sched.SetVisible(visible)
	}
}

func (v *ChatView) resize(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.viewport.Width = width
	v.viewport.Height = max(height-inputHeight-chromeHeight, 1)
	v.rerender()
	v.refresh()
}

// apply folds one event into the transcript.
func (v *ChatView) apply(ev stream.Event) {
	switch ev := ev.(type) {
	case stream.AnswerEvent:
		v.appendText(entryAssistant, ev.Text)
	case stream.ReasoningEvent:
		v.appendText(entryReasoning, ev.Text)
	case stream.ToolCallEvent:
		v.activeTool = ev.ToolName
	case stream.ToolParamsEvent:
		v.entries = append(v.entries, entry{kind: entryTool, text: toolNotice("→", ev.ToolName, ev.Params, v.width)})
	case stream.ToolResponseEvent:
		v.activeTool = ""
		v.entries = append(v.entries, entry{kind: entryTool, text: toolNotice("←", ev.ToolName, ev.Response, v.width)})
	case stream.ErrorEvent:
		v.entries = append(v.entries, entry{kind: entryError, text: fmt.Sprintf("%s: %s", ev.Code, ev.Message)})
	case stream.DoneEvent:
		v.activeTool = ""
	}
}

// appendText extends the trailing entry when it has the same kind, so a
// stream of fragments forms one block.
func (v *ChatView) appendText(kind entryKind, text string) {
	if n := len(v.entries); n > 0 && v.entries[n-1].kind == kind && v.entries[n-1].rendered == "" {
		v.entries[n-1].text += text
	} else {
		v.entries = append(v.entries, entry{kind: kind, text: text})
	}
	if kind == entryAssistant {
		v.lastAnswer = v.entries[len(v.entries)-1].text
	}
}

func (v *ChatView) finish(err error) {
	if v.cancel != nil {
		v.cancel()
	}
	v.streaming = false
	v.cancel = nil
	v.sched = nil
	v.activity = nil
	v.activeTool = ""

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		v.entries = append(v.entries, entry{kind: entryNotice, text: "stopped"})
	default:
		logger().Warn().Err(err).Msg("chat stream failed")
		v.entries = append(v.entries, entry{kind: entryError, text: err.Error()})
	}
	v.rerender()
}

// rerender renders every finished answer as markdown at the current width.
func (v *ChatView) rerender() {
	for i := range v.entries {
		e := &v.entries[i]
		if e.kind != entryAssistant {
			continue
		}
		if v.streaming && i == len(v.entries)-1 {
			continue
		}
		e.rendered = renderMarkdown(e.text, v.width)
	}
}

func (v *ChatView) refresh() {
	v.viewport.SetContent(renderEntries(v.entries, v.width))
	v.viewport.GotoBottom()
}

func (v ChatView) View() string {
	title := TitleStyle.Render("agentrelay")
	if v.opts.Model != "" {
		title += " | " + v.opts.Model
	}
	title += DimStyle.Render(" | session " + shortID(v.sessionID))
	if v.streaming {
		title += " " + v.spinner.View()
		if v.activeTool != "" {
			title += ToolStyle.Render(" " + v.activeTool)
		}
	}

	status := FormatFooter(
		v.keys.DisplayActionKey("quit"), "Quit",
		v.keys.DisplayActionKey("send"), "Send",
		v.keys.DisplayActionKey("cancel"), "Stop",
		v.keys.DisplayActionKey("yank_last_response"), "Copy",
		v.keys.DisplayActionKey("new_session"), "New",
	)
	if v.flash != "" {
		status += "  " + DimStyle.Render(v.flash)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		v.viewport.View(),
		v.input.View(),
		StatusStyle.Render(status),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func logger() *zerolog.Logger {
	return config.Logger("ui")
}
