package provider

import (
	"encoding/json"
	"regexp"
	"strings"

	"agentrelay/model"

	"github.com/google/uuid"
)

// Some models print tool calls as text instead of using the tool interface.
// These patterns recognise the shapes seen in practice.
var (
	leakedJSONArray  = regexp.MustCompile(`\[\s*\{\s*"name"\s*:\s*"[^"]+"\s*,\s*"(?:arguments|param|parameters|input)"\s*:\s*\{[^}]*\}\s*\}\s*\]`)
	leakedJSONObject = regexp.MustCompile(`\{\s*"name"\s*:\s*"([^"]+)"\s*,\s*"(?:arguments|param|parameters|input)"\s*:\s*(\{[^}]*\})\s*\}`)
	leakedXML        = regexp.MustCompile(`<(?:tool_call|function_call)>\s*<name>([^<]+)</name>\s*<arguments>([^<]*)</arguments>\s*</(?:tool_call|function_call)>`)
	leakedQwenXML    = regexp.MustCompile(`(?s)<function=([^>]+)>(.*?)</function>(?:\s*</tool_call>)?`)
	qwenParameter    = regexp.MustCompile(`(?s)<parameter=([^>]+)>(.*?)</parameter>`)
	systemReminder   = regexp.MustCompile(`(?s)<system-reminder>.*?</system-reminder>`)
)

// ParseLeakedJSONToolCalls extracts tool calls printed as JSON objects
// ({"name": ..., "arguments": {...}}), alone or inside an array.
func ParseLeakedJSONToolCalls(content string) []model.ToolCall {
	var calls []model.ToolCall
	for _, m := range leakedJSONObject.FindAllStringSubmatch(content, -1) {
		if !json.Valid([]byte(m[2])) {
			continue
		}
		calls = append(calls, leakedCall(m[1], m[2]))
	}
	return calls
}

// ParseLeakedXMLToolCalls extracts tool calls printed as XML, both the
// <tool_call><name>..</name><arguments>..</arguments></tool_call> form and the
// qwen <function=NAME><parameter=P>V</parameter></function> form.
func ParseLeakedXMLToolCalls(content string) []model.ToolCall {
	var calls []model.ToolCall

	for _, m := range leakedXML.FindAllStringSubmatch(content, -1) {
		args := strings.TrimSpace(m[2])
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			continue
		}
		calls = append(calls, leakedCall(strings.TrimSpace(m[1]), args))
	}

	for _, m := range leakedQwenXML.FindAllStringSubmatch(content, -1) {
		params := make(map[string]any)
		for _, p := range qwenParameter.FindAllStringSubmatch(m[2], -1) {
			params[strings.TrimSpace(p[1])] = strings.TrimSpace(p[2])
		}
		data, err := json.Marshal(params)
		if err != nil {
			continue
		}
		calls = append(calls, leakedCall(strings.TrimSpace(m[1]), string(data)))
	}

	return calls
}

// CleanLeakedToolCalls removes leaked JSON/XML tool calls and stray
// system-reminder tags from content.
func CleanLeakedToolCalls(content string) string {
	content = leakedJSONArray.ReplaceAllString(content, "")
	content = leakedJSONObject.ReplaceAllString(content, "")
	content = leakedXML.ReplaceAllString(content, "")
	content = leakedQwenXML.ReplaceAllString(content, "")
	content = systemReminder.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

func leakedCall(name, args string) model.ToolCall {
	return model.ToolCall{
		ID:        "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		Name:      name,
		Arguments: args,
	}
}

// leakedToolCalls returns the tool calls hidden in content, JSON first.
func leakedToolCalls(content string) []model.ToolCall {
	calls := ParseLeakedJSONToolCalls(content)
	return append(calls, ParseLeakedXMLToolCalls(content)...)
}
