package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette is a simple stylesheet built with named [lipgloss.Style] fields.
//
// The zero value renders text unchanged.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	plain bool
}

// NewPalette builds a palette from title, success, error, warning and help foreground colours.
func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

// DefaultPalette uses Spotify green for success.
func DefaultPalette() *Palette {
	return NewPalette("#7D56F4", "#1DB954", "#FF0000", "#FFA500", "#626262")
}

// PlainPalette renders every style as unstyled text.
func PlainPalette() *Palette {
	return &Palette{plain: true}
}

// render styles text with the style pick selects. A nil or plain palette returns text unchanged.
func (p *Palette) render(pick func(*Palette) lipgloss.Style, text string) string {
	if p == nil || p.plain {
		return text
	}
	return pick(p).Render(text)
}

func (p *Palette) Title(text string) string {
	return p.render(func(p *Palette) lipgloss.Style { return p.title }, text)
}

func (p *Palette) OK(text string) string {
	return p.render(func(p *Palette) lipgloss.Style { return p.ok }, text)
}

func (p *Palette) Err(text string) string {
	return p.render(func(p *Palette) lipgloss.Style { return p.err }, text)
}

func (p *Palette) Warn(text string) string {
	return p.render(func(p *Palette) lipgloss.Style { return p.warn }, text)
}

func (p *Palette) Help(text string) string {
	return p.render(func(p *Palette) lipgloss.Style { return p.help }, text)
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

// IsTerminal reports whether w is a terminal (including Cygwin/MSYS ptys).
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PaletteFor picks [DefaultPalette] for terminals and honours NO_COLOR.
func PaletteFor(w io.Writer) *Palette {
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(w) {
		return PlainPalette()
	}
	return DefaultPalette()
}
