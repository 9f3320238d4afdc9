package ui

import (
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// DefaultTermWidth is used when stdout is not a terminal or its size is unknown.
const DefaultTermWidth = 100

// minMarkdownWidth keeps wrapped prompts readable in very narrow terminals.
const minMarkdownWidth = 20

// DisplayContext describes where stdout is going.
type DisplayContext struct {
	TermWidth int
	IsTTY     bool
}

// NewDisplayContext inspects stdout.
func NewDisplayContext() *DisplayContext {
	return detectDisplay(os.Stdout.Fd())
}

func detectDisplay(fd uintptr) *DisplayContext {
	d := &DisplayContext{TermWidth: DefaultTermWidth}
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return d
	}
	d.IsTTY = true
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		d.TermWidth = w
	}
	return d
}

// MarkdownWidth is the word-wrap width for rendered prompts.
func (d *DisplayContext) MarkdownWidth() int {
	return max(d.TermWidth-2*MarkdownRenderMargin, minMarkdownWidth)
}
