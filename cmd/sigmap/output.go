package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#5C7A84")
	colorError  = lipgloss.Color("#E74C3C")
)

// printer writes human readable output, styled only on a terminal
type printer struct {
	w io.Writer

	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	muted lipgloss.Style
	err   lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	p := &printer{
		w:     w,
		title: lipgloss.NewStyle(),
		label: lipgloss.NewStyle().Width(36),
		value: lipgloss.NewStyle(),
		muted: lipgloss.NewStyle(),
		err:   lipgloss.NewStyle(),
	}
	if !isTerminal(w) {
		return p
	}
	p.title = p.title.Bold(true).Foreground(colorAccent).MarginBottom(1)
	p.value = p.value.Bold(true)
	p.muted = p.muted.Foreground(colorMuted)
	p.err = p.err.Bold(true).Foreground(colorError)
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) Title(text string) {
	fmt.Fprintln(p.w, p.title.Render(text))
}

// Row prints a label padded to a fixed column and its value
func (p *printer) Row(label, format string, args ...any) {
	fmt.Fprintln(p.w, p.label.Render(label)+p.value.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Note(format string, args ...any) {
	fmt.Fprintln(p.w, p.muted.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Error(err error) {
	fmt.Fprintln(p.w, p.err.Render("error:"), err)
}

// writeJSON prints v indented
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
