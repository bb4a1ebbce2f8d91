package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"notevault/models"
)

const timeLayout = "2006-01-02 15:04"

// styles renders for one writer; a writer that is not a terminal gets
// plain text.
type styles struct {
	title   lipgloss.Style
	dim     lipgloss.Style
	pin     lipgloss.Style
	lock    lipgloss.Style
	tag     lipgloss.Style
	heading lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true),
		dim:     r.NewStyle().Faint(true),
		pin:     r.NewStyle().Foreground(lipgloss.Color("214")),
		lock:    r.NewStyle().Foreground(lipgloss.Color("99")),
		tag:     r.NewStyle().Foreground(lipgloss.Color("36")),
		heading: r.NewStyle().Bold(true).Underline(true),
	}
}

func (s styles) markers(n models.Note) string {
	pin, lock := " ", " "
	if n.Header().IsPinned {
		pin = s.pin.Render("*")
	}
	if n.Kind() == models.KindEncrypted {
		lock = s.lock.Render("#")
	}
	return pin + lock
}

func (s styles) tags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = s.tag.Render("#" + t)
	}
	return strings.Join(parts, " ")
}

// listLine is one row of list/search output: markers, short id, title,
// tags and update time.
func (s styles) listLine(n models.Note) string {
	h := n.Header()
	title := h.Title
	if title == "" {
		title = "(untitled)"
	}
	line := s.markers(n) + " " + s.dim.Render(shortID(h.ID)) + "  " + s.title.Render(title)
	if t := s.tags(h.Tags); t != "" {
		line += "  " + t
	}
	return line + "  " + s.dim.Render(h.UpdatedAt.Local().Format(timeLayout))
}

// detail renders a note header followed by its content.
func (s styles) detail(n models.Note, content string) string {
	h := n.Header()
	var b strings.Builder
	b.WriteString(s.heading.Render(h.Title))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("id:      " + string(h.ID)))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("kind:    " + n.Kind().String()))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("created: " + h.CreatedAt.Local().Format(timeLayout)))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("updated: " + h.UpdatedAt.Local().Format(timeLayout)))
	b.WriteString("\n")
	if h.IsPinned {
		b.WriteString(s.pin.Render("pinned"))
		b.WriteString("\n")
	}
	if t := s.tags(h.Tags); t != "" {
		b.WriteString(t)
		b.WriteString("\n")
	}
	if h.Summary != "" {
		b.WriteString(s.dim.Render("summary: " + h.Summary))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func shortID(id models.NoteID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}
