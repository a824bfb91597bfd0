package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/storagegraph/pkg/pipeline"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ReviewModel - Interactive plan confirmation
// =============================================================================

// ReviewModel is the bubbletea model that shows a plan before it is
// committed and asks for confirmation.
type ReviewModel struct {
	Steps     []pipeline.Step
	Cursor    int
	Height    int
	Offset    int
	Confirmed bool
	Done      bool
}

// NewReviewModel creates a review model for the steps of a plan.
func NewReviewModel(steps []pipeline.Step) ReviewModel {
	return ReviewModel{Steps: steps, Height: 15}
}

func (m ReviewModel) Init() tea.Cmd {
	return nil
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "n", "ctrl+c", "esc":
			m.Done = true
			return m, tea.Quit
		case "y", "enter":
			m.Confirmed = true
			m.Done = true
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Steps)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 7
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ReviewModel) View() string {
	if m.Done {
		return ""
	}
	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("Commit %d actions?", len(m.Steps))))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ scroll  y/⏎ commit  n/q abort"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Steps))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		s := m.Steps[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		features := strings.Join(s.Features, ", ")
		if features == "" {
			features = "—"
		}
		rows = append(rows, []string{cursor, fmt.Sprint(s.N), s.Text, features})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "#", "Action", "Needs").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Steps) {
				return lipgloss.NewStyle()
			}
			switch {
			case idx == m.Cursor:
				return listSelectedStyle
			case m.Steps[idx].Trailing || col == 3:
				return listDimStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Steps))))

	return b.String()
}

// review runs the confirmation dialog and reports whether the user
// confirmed.
func review(steps []pipeline.Step) (bool, error) {
	final, err := tea.NewProgram(NewReviewModel(steps)).Run()
	if err != nil {
		return false, fmt.Errorf("review: %w", err)
	}
	return final.(ReviewModel).Confirmed, nil
}
