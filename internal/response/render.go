package response

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Render turns a tool result into the text recorded in the transcript.
// Every content item ends with a newline; results flagged as errors are
// prefixed with "Error: ".
func Render(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	for _, content := range result.Content {
		b.WriteString(renderContent(content))
		b.WriteByte('\n')
	}

	// Servers that only return structured output still need a transcript.
	if len(result.Content) == 0 && result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			b.Write(data)
			b.WriteByte('\n')
		}
	}

	if result.IsError {
		return "Error: " + b.String()
	}
	return b.String()
}

func renderContent(content mcp.Content) string {
	switch c := content.(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	case mcp.ImageContent:
		return fmt.Sprintf("[Image: %s (%d bytes)]", c.MIMEType, len(c.Data))
	case *mcp.ImageContent:
		return fmt.Sprintf("[Image: %s (%d bytes)]", c.MIMEType, len(c.Data))
	case mcp.AudioContent:
		return fmt.Sprintf("[Audio: %s (%d bytes)]", c.MIMEType, len(c.Data))
	case *mcp.AudioContent:
		return fmt.Sprintf("[Audio: %s (%d bytes)]", c.MIMEType, len(c.Data))
	case mcp.EmbeddedResource:
		return fmt.Sprintf("[Resource: %s]", resourceURI(c.Resource))
	case *mcp.EmbeddedResource:
		return fmt.Sprintf("[Resource: %s]", resourceURI(c.Resource))
	case mcp.ResourceLink:
		return fmt.Sprintf("[Resource: %s]", c.URI)
	case *mcp.ResourceLink:
		return fmt.Sprintf("[Resource: %s]", c.URI)
	default:
		raw, err := json.Marshal(content)
		if err != nil {
			return fmt.Sprintf("%v", content)
		}
		return string(raw)
	}
}

func resourceURI(resource mcp.ResourceContents) string {
	switch r := resource.(type) {
	case mcp.TextResourceContents:
		return r.URI
	case *mcp.TextResourceContents:
		return r.URI
	case mcp.BlobResourceContents:
		return r.URI
	case *mcp.BlobResourceContents:
		return r.URI
	default:
		return "unknown"
	}
}
