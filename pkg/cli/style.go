package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Theme defines the colors used for tables.
type Theme struct {
	Primary lipgloss.Color // header and border color
	Dim     lipgloss.Color // secondary columns
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
	Dim    lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim).Padding(0, 1),
	}
}

// Tabler is implemented by results that can be printed as a table.
type Tabler interface {
	Header() []string
	Rows() [][]string
}

// RenderTable renders t with rounded borders. Columns after the first
// DimFrom columns are dimmed; DimFrom <= 0 dims nothing.
func RenderTable(t Tabler, s Styles, dimFrom int) string {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		Headers(t.Header()...).
		Rows(t.Rows()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.Header
			case dimFrom > 0 && col >= dimFrom:
				return s.Dim
			default:
				return s.Cell
			}
		})
	return tbl.Render()
}
