package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avi1989/ask/internal/paths"
	"github.com/avi1989/ask/internal/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// now is the clock session ages are measured against. Tests replace it.
var now = time.Now

func (a *app) sessions() *session.Store {
	return session.NewStore(paths.SessionsDir(), a.logger)
}

func (a *app) newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all sessions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				infos, err := a.sessions().List()
				if err != nil {
					return fmt.Errorf("Failed to list sessions: %w", err)
				}
				t := now()
				for _, info := range infos {
					fmt.Fprintf(rootStdout, "%-20s %s\n", info.Name, info.Age(t))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show [name]",
			Short: "Show the conversation of a session",
			Long:  "Show the conversation of a session, by default the last one written.",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store := a.sessions()
				name := session.DefaultName
				if len(args) == 1 {
					name = args[0]
				} else if last, ok := store.LastName(); ok {
					name = last
				}
				messages, ok := store.Load(name)
				if !ok {
					fmt.Fprintln(rootStdout, "Session not found")
					return nil
				}
				tty, width := terminal(rootStdout)
				fmt.Fprint(rootStdout, renderTranscript(name, messages, tty, width))
				return nil
			},
		},
		&cobra.Command{
			Use:   "save <name>",
			Short: "Save the last conversation as a named session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store := a.sessions()
				messages, ok := store.Load(session.DefaultName)
				if !ok {
					return errors.New("No session to save")
				}
				if err := store.Save(args[0], messages, nil); err != nil {
					return fmt.Errorf("Failed to save session: %w", err)
				}
				fmt.Fprintf(rootStdout, "Saved session as %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

type boxStyle struct {
	label      string
	color      lipgloss.Color
	widthRatio float64
	alignRight bool
	leftMargin int
}

var (
	userBox = boxStyle{
		label:      "User",
		color:      lipgloss.Color("6"),
		widthRatio: 0.6,
		alignRight: true,
	}
	assistantBox = boxStyle{
		label:      "Assistant",
		color:      lipgloss.Color("2"),
		widthRatio: 0.8,
		leftMargin: 2,
	}
)

const boxPadding = 3

// renderTranscript formats the user and assistant messages of a session.
// On a terminal they are drawn as boxes; otherwise as labelled plain text.
func renderTranscript(name string, messages []session.Message, tty bool, width int) string {
	var b strings.Builder
	b.WriteString("\n")

	if tty {
		header := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("5")).
			Width(width).
			Align(lipgloss.Center).
			Render(fmt.Sprintf("═══ Session: %s ═══", name))
		b.WriteString(header + "\n")
	} else {
		fmt.Fprintf(&b, "=== Session: %s ===\n", name)
	}
	b.WriteString("\n")

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(renderBox(msg.Content, userBox, tty, width))
		case session.RoleAssistant:
			b.WriteString(renderBox(msg.Content, assistantBox, tty, width))
		}
	}
	return b.String()
}

func renderBox(text string, style boxStyle, tty bool, width int) string {
	if !tty {
		return fmt.Sprintf("%s\n%s\n%s\n\n", style.label, strings.Repeat("-", len(style.label)), text)
	}

	maxBox := int(float64(width) * style.widthRatio)
	content := 0
	for _, line := range strings.Split(text, "\n") {
		content = max(content, lipgloss.Width(line))
	}
	content = max(min(content, maxBox-boxPadding*2), 1)
	// Width covers padding; the border adds two more columns.
	inner := content + boxPadding*2
	outer := inner + 2

	margin := style.leftMargin
	if style.alignRight {
		margin = max(width-outer-2, 0)
	}

	labelStyle := lipgloss.NewStyle().Foreground(style.color).MarginLeft(margin)
	if style.alignRight {
		labelStyle = labelStyle.Width(outer).Align(lipgloss.Right)
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.color).
		Padding(0, boxPadding).
		Width(inner).
		MarginLeft(margin).
		Render(text)

	return labelStyle.Render(style.label) + "\n" + box + "\n\n"
}
