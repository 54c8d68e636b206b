package agent

import (
	"agentrelay/model"
)

// answerOpenCalls gives every tool call in messages a response, so a
// transcript saved by an interrupted run can be sent to a model again.
//
// A run that ended on an interactive tool leaves the calls of its last turn
// unanswered. When a user message follows such a turn it becomes the answer
// to the first open interactive call and is consumed; every other open call
// is answered as stopped. Responses are placed directly after their
// assistant turn, in call order.
func (l *Loop) answerOpenCalls(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		out = append(out, msg)
		if msg.Role != model.RoleAssistant || len(msg.ToolCalls) == 0 {
			continue
		}

		end := i + 1
		for end < len(messages) && messages[end].Role == model.RoleTool {
			end++
		}
		responses := messages[i+1 : end]

		answered := make(map[string]model.Message, len(responses))
		for _, resp := range responses {
			answered[resp.ToolCallID] = resp
		}

		var reply *model.Message
		if end < len(messages) && messages[end].Role == model.RoleUser {
			reply = &messages[end]
		}

		open := 0
		ids := make(map[string]bool, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			ids[call.ID] = true
			if resp, ok := answered[call.ID]; ok {
				out = append(out, resp)
				continue
			}
			open++
			content := stoppedResponse
			if reply != nil && l.isInteractive(call.Name) {
				content = reply.Content
				reply = nil
				end++
			}
			out = append(out, model.NewToolResponse(call, content))
		}
		// Tool messages that answer no call of this turn stay where they were.
		for _, resp := range responses {
			if !ids[resp.ToolCallID] {
				out = append(out, resp)
			}
		}

		if open > 0 {
			logger().Debug().Int("open_calls", open).Str("message_id", msg.ID).Msg("answered open tool calls from history")
		}
		i = end - 1
	}
	return out
}

func (l *Loop) isInteractive(name string) bool {
	def, ok := l.registry.Lookup(name)
	return ok && def.Interactive
}
