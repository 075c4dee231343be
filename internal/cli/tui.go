package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/sb3min/pkg/pipeline"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// categoryColors tints identifiers by category.
var categoryColors = map[string]lipgloss.Color{
	"block":     colorWhite,
	"variable":  colorGreen,
	"list":      colorCyan,
	"broadcast": colorYellow,
}

// =============================================================================
// IDListModel - Interactive identifier browser
// =============================================================================

// IDListModel is the bubbletea model for browsing the ranked identifiers of
// an inspection.
type IDListModel struct {
	Inspection *pipeline.Inspection
	Items      []pipeline.RankedID
	Cursor     int
	Height     int
	Offset     int

	// Filter restricts Items to one category. Empty shows all.
	Filter string
}

// NewIDListModel creates a browser over in.
func NewIDListModel(in *pipeline.Inspection) IDListModel {
	return IDListModel{
		Inspection: in,
		Items:      in.Ranked,
		Height:     15,
	}
}

func (m IDListModel) Init() tea.Cmd {
	return nil
}

func (m IDListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "tab":
			m = m.withFilter(nextFilter(m.Filter))
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

var filters = []string{"", "block", "variable", "list", "broadcast"}

func nextFilter(current string) string {
	for i, f := range filters {
		if f == current {
			return filters[(i+1)%len(filters)]
		}
	}
	return ""
}

func (m IDListModel) withFilter(filter string) IDListModel {
	m.Filter = filter
	m.Cursor, m.Offset = 0, 0
	if filter == "" {
		m.Items = m.Inspection.Ranked
		return m
	}
	m.Items = nil
	for _, r := range m.Inspection.Ranked {
		if r.Category == filter {
			m.Items = append(m.Items, r)
		}
	}
	return m
}

func (m IDListModel) View() string {
	var b strings.Builder

	in := m.Inspection
	b.WriteString(StyleTitle.Render(in.Source))
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %s · %d identifiers · saves about %s",
		in.Kind, len(in.Ranked), formatBytes(int64(in.Savings)))))
	b.WriteString("\n")
	filter := m.Filter
	if filter == "" {
		filter = "all"
	}
	b.WriteString(listDimStyle.Render("↑/↓ navigate  tab filter (" + filter + ")  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Items) {
		end = len(m.Items)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Items[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			truncate(r.ID, 36),
			r.Category,
			strconv.Itoa(r.Uses),
			strconv.Itoa(r.Targets),
			r.Code,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Identifier", "Category", "Uses", "Targets", "Code").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Items) {
				return lipgloss.NewStyle()
			}
			r := m.Items[idx]
			base := lipgloss.NewStyle()
			if col == 3 || col == 4 {
				base = base.Align(lipgloss.Right)
			}
			if idx == m.Cursor {
				return base.Foreground(colorCyan).Bold(true)
			}
			if r.Uses == 0 {
				return base.Foreground(colorDim)
			}
			if c, ok := categoryColors[r.Category]; ok && col == 2 {
				return base.Foreground(c)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	if len(m.Items) > 0 {
		sel := m.Items[m.Cursor]
		b.WriteString(listSelectedStyle.Render(sel.ID))
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  %s %s  %d bytes per occurrence saved",
			iconArrow, sel.Code, len(sel.ID)-len(sel.Code))))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Items)), len(m.Items))))

	return b.String()
}
