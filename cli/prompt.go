package cli

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notevault/models"
)

var promptStyle = lipgloss.NewStyle().Bold(true)

type passwordModel struct {
	label    string
	input    textinput.Model
	done     bool
	canceled bool
}

func newPasswordModel(label string) passwordModel {
	ti := textinput.New()
	ti.Placeholder = "password"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 256
	ti.Width = 32
	ti.Focus()
	return passwordModel{label: label, input: ti}
}

func (m passwordModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m passwordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.canceled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m passwordModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	return promptStyle.Render(m.label) + "\n" + m.input.View() + "\n"
}

func promptLabel(req models.PasswordRequest) string {
	switch req.Purpose {
	case models.PurposeCreate:
		return "Choose a password for " + quoteTitle(req.Title)
	case models.PurposeUpdate:
		return "Password to re-encrypt " + quoteTitle(req.Title)
	case models.PurposeDelete:
		return "Password to delete " + quoteTitle(req.Title)
	}
	return "Password for " + quoteTitle(req.Title)
}

func quoteTitle(t string) string {
	if t == "" {
		return "untitled note"
	}
	return "\"" + t + "\""
}

// TerminalPrompt reads a password with echo masked. Esc or Ctrl+C returns
// models.ErrCanceled.
func TerminalPrompt(in io.Reader, out io.Writer) models.PasswordPrompt {
	return func(ctx context.Context, req models.PasswordRequest) (string, error) {
		p := tea.NewProgram(newPasswordModel(promptLabel(req)),
			tea.WithContext(ctx),
			tea.WithInput(in),
			tea.WithOutput(out),
		)
		final, err := p.Run()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", errors.Join(models.ErrCanceled, ctxErr)
			}
			return "", err
		}
		m, ok := final.(passwordModel)
		if !ok {
			return "", models.ErrCanceled
		}
		return m.result()
	}
}

// result is the submitted password. Anything short of Enter, including
// input that ends before it, is a cancellation and discards what was typed.
func (m passwordModel) result() (string, error) {
	if !m.done || m.canceled {
		return "", models.ErrCanceled
	}
	return m.input.Value(), nil
}
