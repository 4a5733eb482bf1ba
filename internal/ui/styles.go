package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorLike      = lipgloss.Color("204") // Red-pink
)

// Card is the frame around the card in view.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// CardTitle style for the card headline.
var CardTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255"))

// CardBody style for summary text.
var CardBody = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252"))

// CardMeta style for the image and related lines.
var CardMeta = lipgloss.NewStyle().
	Foreground(colorMuted)

// Tag style for category badges.
var Tag = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// Liked style for the heart of a liked card.
var Liked = lipgloss.NewStyle().
	Foreground(colorLike).
	Bold(true)

// Action style for the like/comment counters.
var Action = lipgloss.NewStyle().
	Foreground(colorSecondary)

// Footer style for the loading indicator and end-of-feed notice.
var Footer = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(1, 2)

// CaughtUp style for the end-of-feed notice.
var CaughtUp = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// Sheet is the comment panel frame.
var Sheet = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder(), true, false, false, false).
	BorderForeground(colorHighlight).
	Padding(0, 1)

// SheetHeader style for the comment panel title.
var SheetHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// CommentAuthor style for comment usernames.
var CommentAuthor = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Bold(true)

// DebugPanel is the frame of the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorHighlight).
	Padding(1, 2)

// DebugHeaderStyle for section headers inside the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)
