package ui

import (
	"strings"

	"github.com/abelbrown/thinktok/internal/api"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// commentCharLimit caps a single comment.
const commentCharLimit = 500

// commentSheet is the panel listing a card's comments with a composer
// underneath. Comments are flat; there is no threading.
type commentSheet struct {
	contentID string
	title     string
	comments  []api.Comment
	loading   bool
	posting   bool
	err       error

	viewport viewport.Model
	input    textinput.Model
}

func newCommentSheet(contentID, title string, width, height int) commentSheet {
	in := textinput.New()
	in.Placeholder = "Add a comment..."
	in.CharLimit = commentCharLimit
	in.Prompt = "> "
	in.Focus()

	s := commentSheet{
		contentID: contentID,
		title:     title,
		loading:   true,
		viewport:  viewport.New(width, 1),
		input:     in,
	}
	s.setSize(width, height)
	return s
}

// setSize fits the sheet into width x height: header, list, composer.
func (s *commentSheet) setSize(width, height int) {
	listHeight := height - 4 // border, header, blank line, composer
	if listHeight < 1 {
		listHeight = 1
	}
	s.viewport.Width = width - 2
	s.viewport.Height = listHeight
	s.input.Width = width - 6
	s.refresh()
}

func (s *commentSheet) setPage(page api.CommentPage) {
	s.loading = false
	s.comments = page.Comments
	if page.PageTitle != "" && page.PageTitle != "Unknown" {
		s.title = page.PageTitle
	}
	s.refresh()
}

// added appends a freshly posted comment and clears the composer.
func (s *commentSheet) added(c api.Comment) {
	s.posting = false
	s.err = nil
	s.comments = append(s.comments, c)
	s.input.Reset()
	s.refresh()
	s.viewport.GotoBottom()
}

// draft returns the composer text, trimmed.
func (s commentSheet) draft() string {
	return strings.TrimSpace(s.input.Value())
}

func (s *commentSheet) refresh() {
	var b strings.Builder
	switch {
	case s.loading:
		b.WriteString(HelpStyle.Render("Loading comments..."))
	case len(s.comments) == 0:
		b.WriteString(HelpStyle.Render("No comments yet. Be the first!"))
	default:
		for i, c := range s.comments {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(CommentAuthor.Render(c.User.Username))
			b.WriteString("\n")
			b.WriteString(CardBody.Width(s.viewport.Width).Render(c.Text))
			b.WriteString("\n")
		}
	}
	s.viewport.SetContent(b.String())
}

func (s commentSheet) update(msg tea.Msg) (commentSheet, tea.Cmd) {
	var cmd tea.Cmd
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.Type {
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			s.viewport, cmd = s.viewport.Update(msg)
			return s, cmd
		}
	}
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s commentSheet) View(width int) string {
	header := SheetHeader.Render("Comments · " + truncateRunes(s.title, width-16))
	composer := s.input.View()
	if s.posting {
		composer = HelpStyle.Render("Posting...")
	}
	body := header + "\n" + s.viewport.View() + "\n" + composer
	if s.err != nil {
		body += "\n" + ErrorStyle.Render(s.err.Error())
	}
	return Sheet.Width(width).Render(body)
}
