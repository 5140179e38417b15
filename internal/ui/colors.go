package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles is the CLI's default palette.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	rule   lipgloss.Style
	add    lipgloss.Style
	remove lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		rule:   NewStyle(t),
		add:    NewStyle(s),
		remove: NewStyle(e),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render("✓ " + s) }
func (p *Palette) Err(s string) string   { return p.err.Render("✗ " + s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render("⚠ " + s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Added renders a track line for an addition.
func (p *Palette) Added(s string) string { return p.add.Render("+ " + s) }

// Removed renders a track line for a removal.
func (p *Palette) Removed(s string) string { return p.remove.Render("- " + s) }

// Header renders a title between two rules.
func (p *Palette) Header(title string) string {
	rule := p.rule.Render(strings.Repeat("═", 39))
	return fmt.Sprintf("%s\n%s\n%s", rule, p.Title(title), rule)
}
