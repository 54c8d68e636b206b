package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// RemoteToolError is returned by ResultText when the server flagged the
// call result as an error.
type RemoteToolError struct {
	Message string
}

func (e *RemoteToolError) Error() string {
	return e.Message
}

// ResultText normalizes a tool call result into a single string. Text blocks
// are joined with newlines, other blocks are rendered as short descriptions,
// and structured content is JSON-encoded when there is no text. A result
// flagged isError becomes a *RemoteToolError carrying the rendered text.
func ResultText(result *mcptypes.CallToolResult) (string, error) {
	if result == nil {
		return "", nil
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if s := renderContent(content); s != "" {
			parts = append(parts, s)
		}
	}
	text := strings.Join(parts, "\n")

	if text == "" && result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", fmt.Errorf("failed to encode structured content: %w", err)
		}
		text = string(data)
	}

	if result.IsError {
		if text == "" {
			text = "remote tool reported an error"
		}
		return "", &RemoteToolError{Message: text}
	}

	return text, nil
}

func renderContent(content mcptypes.Content) string {
	switch c := content.(type) {
	case mcptypes.TextContent:
		return c.Text
	case *mcptypes.TextContent:
		return c.Text
	case mcptypes.ImageContent:
		return fmt.Sprintf("[image %s, %d bytes base64]", c.MIMEType, len(c.Data))
	case *mcptypes.ImageContent:
		return fmt.Sprintf("[image %s, %d bytes base64]", c.MIMEType, len(c.Data))
	case mcptypes.AudioContent:
		return fmt.Sprintf("[audio %s, %d bytes base64]", c.MIMEType, len(c.Data))
	case *mcptypes.AudioContent:
		return fmt.Sprintf("[audio %s, %d bytes base64]", c.MIMEType, len(c.Data))
	case mcptypes.ResourceLink:
		return renderLink(c)
	case *mcptypes.ResourceLink:
		return renderLink(*c)
	case mcptypes.EmbeddedResource:
		return renderResource(c.Resource)
	case *mcptypes.EmbeddedResource:
		return renderResource(c.Resource)
	default:
		data, err := json.Marshal(content)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func renderLink(link mcptypes.ResourceLink) string {
	s := fmt.Sprintf("[resource %s](%s)", link.Name, link.URI)
	if link.Description != "" {
		s += " " + link.Description
	}
	return s
}

func renderResource(resource mcptypes.ResourceContents) string {
	switch r := resource.(type) {
	case mcptypes.TextResourceContents:
		return r.Text
	case *mcptypes.TextResourceContents:
		return r.Text
	case mcptypes.BlobResourceContents:
		return fmt.Sprintf("[resource %s %s, %d bytes base64]", r.URI, r.MIMEType, len(r.Blob))
	case *mcptypes.BlobResourceContents:
		return fmt.Sprintf("[resource %s %s, %d bytes base64]", r.URI, r.MIMEType, len(r.Blob))
	default:
		return ""
	}
}
