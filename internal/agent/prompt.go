package agent

import (
	"fmt"
	"time"

	"github.com/avi1989/ask/internal/shell"
)

const systemPromptFormat = "Help the user with their tasks. \n" +
	"IMPORTANT: This is a one-way conversation - the user cannot reply to your messages.\n" +
	"Guidelines:\n" +
	"• You don't need to ask for permission to use the tools available to you \n" +
	"• Use the current directory as working directory unless otherwise specified\n" +
	"• Follow the conventions that the user uses.  \n" +
	"• Example: If the user asks you to generate a commit message, look at other commits and generate a message that is similar to them. \n" +
	"• If you don't know the answer, try to figure it out based on the information available to you.\n" +
	"• Ensure shell commands are compatible with %s\n" +
	"• Today's date is %s.\n" +
	"• Format all responses in markdown for readability\n\n"

// SystemPrompt returns the instructions that open every new conversation.
func SystemPrompt(kind shell.Kind, now time.Time) string {
	return fmt.Sprintf(systemPromptFormat, kind, now.Format("2006-01-02"))
}
