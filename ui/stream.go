package ui

import (
	"context"

	"agentrelay/model"
	"agentrelay/stream"

	tea "github.com/charmbracelet/bubbletea"
)

// streamEventMsg carries one event released by the scheduler.
type streamEventMsg struct {
	event stream.Event
}

// streamEndMsg follows the last event of a response.
type streamEndMsg struct {
	err error
}

// begin records the prompt and prepares playback for its response.
func (v *ChatView) begin(text string) (context.Context, stream.ChatRequest) {
	v.entries = append(v.entries, entry{kind: entryUser, text: text})
	v.flash = ""

	ctx, cancel := context.WithCancel(context.Background())
	activity := make(chan tea.Msg, activityBuffer)

	v.streaming = true
	v.cancel = cancel
	v.activity = activity
	v.sched = stream.NewScheduler(func(ev stream.Event) {
		activity <- streamEventMsg{event: ev}
	})
	v.sched.SetVisible(v.focused)

	req := stream.ChatRequest{
		Model:     v.opts.Model,
		Messages:  []model.Message{model.NewMessage(model.RoleUser, text)},
		Tools:     v.opts.Tools,
		Stream:    !v.opts.Buffered,
		SessionID: v.sessionID,
	}
	return ctx, req
}

// streamResponse plays the response to req into activity and ends it with a
// streamEndMsg. Events and the end marker share one channel, so the end can
// never overtake an event.
func streamResponse(ctx context.Context, client *stream.Client, req stream.ChatRequest, sched *stream.Scheduler, activity chan<- tea.Msg) tea.Cmd {
	return func() tea.Msg {
		err := client.StreamWith(ctx, req, sched)
		activity <- streamEndMsg{err: err}
		return nil
	}
}

func waitForActivity(activity <-chan tea.Msg) tea.Cmd {
	if activity == nil {
		return nil
	}
	return func() tea.Msg {
		return <-activity
	}
}
