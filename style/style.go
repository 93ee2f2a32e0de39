package style

import "github.com/charmbracelet/lipgloss"

// Colors of the active theme.
var (
	Primary   lipgloss.TerminalColor
	Secondary lipgloss.TerminalColor
	Success   lipgloss.TerminalColor
	Warning   lipgloss.TerminalColor
	Error     lipgloss.TerminalColor
	Muted     lipgloss.TerminalColor
	Dim       lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
)

// Styles derived from the active theme. Rebuilt by SetTheme.
var (
	Bold      lipgloss.Style
	Faint     lipgloss.Style
	ErrorText lipgloss.Style

	// Prompt
	PromptChar lipgloss.Style

	// Chat
	UserLabel       lipgloss.Style
	AgentLabel      lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style

	// Three-dot waiting indicator
	Indicator lipgloss.Style

	// Composer frame and its disabled variant
	Composer         lipgloss.Style
	ComposerDisabled lipgloss.Style

	// Hint text (ctrl+e, esc)
	Hint lipgloss.Style

	StatusBar lipgloss.Style
)

func init() {
	apply(darkTheme)
}

func apply(t Theme) {
	Primary = t.Primary
	Secondary = t.Secondary
	Success = t.Success
	Warning = t.Warning
	Error = t.Error
	Muted = t.Muted
	Dim = t.Dim
	Border = t.Border

	Bold = lipgloss.NewStyle().Bold(true)
	Faint = lipgloss.NewStyle().Foreground(t.Muted)
	ErrorText = lipgloss.NewStyle().Foreground(t.Error).Bold(true)

	PromptChar = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	UserLabel = lipgloss.NewStyle().
		Foreground(t.Secondary).
		Bold(true)
	AgentLabel = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	// Left-border bubbles (OpenCode style); user bubbles sit on the right.
	UserBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderRight(true).
		BorderForeground(t.MsgBorderUser).
		PaddingRight(1)
	AssistantBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(t.MsgBorderAgent).
		PaddingLeft(1)

	Indicator = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	Composer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.Border)
	ComposerDisabled = Composer.
		BorderForeground(t.Dim)

	Hint = lipgloss.NewStyle().
		Foreground(t.Dim)

	StatusBar = lipgloss.NewStyle().
		Foreground(t.Muted).
		PaddingLeft(1)
}
