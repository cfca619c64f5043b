package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorDim = lipgloss.Color("#928374")
	colorFg  = lipgloss.Color("#ebdbb2")
)

// ConsoleSink renders messages as boxed cards on a terminal, or as plain
// text when the writer is not a terminal.
type ConsoleSink struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w, styled: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *ConsoleSink) Send(_ context.Context, msg Message) error {
	out := RenderPlain(msg)
	if c.styled {
		out = RenderCard(msg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, out)
	return err
}

// RenderCard draws msg as a rounded box with its accent colour.
func RenderCard(msg Message) string {
	accent := lipgloss.Color(fmt.Sprintf("#%06x", msg.Color&0xffffff))
	title := lipgloss.NewStyle().Foreground(accent).Bold(true).Render(msg.Title)
	name := lipgloss.NewStyle().Foreground(colorDim)
	value := lipgloss.NewStyle().Foreground(colorFg).Width(60)

	var b strings.Builder
	b.WriteString(title)
	if msg.Description != "" {
		b.WriteString("\n\n" + value.Render(msg.Description))
	}
	for _, f := range msg.Fields {
		b.WriteString("\n\n" + name.Render(f.Name) + "\n" + value.Render(f.Value))
	}
	if msg.Footer != "" {
		b.WriteString("\n\n" + name.Render(msg.Footer))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		PaddingLeft(2).
		PaddingRight(2).
		Render(b.String())
}

// RenderPlain is the colourless rendering used for pipes and logs.
func RenderPlain(msg Message) string {
	var b strings.Builder
	if msg.ChannelID != "" {
		fmt.Fprintf(&b, "[#%s] ", msg.ChannelID)
	}
	b.WriteString("== " + msg.Title + " ==")
	if msg.Description != "" {
		b.WriteString("\n" + msg.Description)
	}
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	if msg.Footer != "" {
		b.WriteString("\n-- " + msg.Footer)
	}
	return b.String()
}
