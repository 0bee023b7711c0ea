package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const filesystemPrefix = "filesystem_"

// preview renders what the user is asked to approve for an MCP tool call.
func preview(tool, arguments string, verbose bool) string {
	var parsed any
	if err := json.Unmarshal([]byte(arguments), &parsed); err != nil {
		return fmt.Sprintf("MCP Tool: %s\nArguments: %s", tool, arguments)
	}
	if strings.HasPrefix(tool, filesystemPrefix) && !verbose {
		if args, ok := parsed.(map[string]any); ok {
			if s, ok := filesystemPreview(strings.TrimPrefix(tool, filesystemPrefix), args); ok {
				return s
			}
		}
	}
	return genericPreview(tool, parsed)
}

func genericPreview(tool string, args any) string {
	return fmt.Sprintf("Executing %s\nArguments:\n%s", tool, prettyJSON(args))
}

func filesystemPreview(op string, args map[string]any) (string, bool) {
	switch op {
	case "read_text_file", "read_file":
		return "Reading " + jsonValue(args["path"]), true
	case "read_multiple_files":
		paths, ok := args["paths"].([]any)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("Reading (%s)", joinJSON(paths)), true
	case "get_file_info":
		return fmt.Sprintf("Reading File Metadata (%s)", jsonValue(args["path"])), true
	case "list_directory":
		return fmt.Sprintf("Listing Files (%s)", jsonValue(args["path"])), true
	case "list_directory_with_sizes":
		return fmt.Sprintf("Listing Files with sizes (%s)", jsonValue(args["path"])), true
	case "directory_tree":
		s := fmt.Sprintf("Listing Directory Tree (%s)", jsonValue(args["path"]))
		if excludes, ok := args["excludePatterns"].([]any); ok && len(excludes) > 0 {
			s += " excluding " + joinJSON(excludes)
		}
		return s, true
	case "list_allowed_directories":
		return "Listing Allowed Directories", true
	case "search_files":
		return fmt.Sprintf("Searching(%s) in %s", jsonValue(args["pattern"]), jsonValue(args["path"])), true
	case "write_file":
		return fmt.Sprintf("Writing %s:\n%s", jsonValue(args["path"]), jsonValue(args["content"])), true
	case "create_directory":
		return fmt.Sprintf("Creating Directory (%s)", jsonValue(args["path"])), true
	case "move_file":
		return fmt.Sprintf("Moving %s to %s", jsonValue(args["source"]), jsonValue(args["destination"])), true
	case "edit_file":
		return "Editing " + jsonValue(args["path"]), true
	default:
		return "", false
	}
}

func joinJSON(values []any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, jsonValue(v))
	}
	return strings.Join(parts, ", ")
}

// jsonValue renders v as compact JSON; strings keep their quotes and a
// missing value renders as null.
func jsonValue(v any) string {
	return encodeJSON(v, "")
}

func prettyJSON(v any) string {
	return encodeJSON(v, "  ")
}

func encodeJSON(v any, indent string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
