// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package console reads operator commands from a terminal and renders
// messages sent to the console actor.
package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/command"
)

// HandleFunc runs one console line.
type HandleFunc func(ctx context.Context, line string) (command.Outcome, error)

// Console renders output with lipgloss styles. Colors are dropped when
// the writer is not a terminal.
type Console struct {
	in  io.Reader
	out io.Writer
	mu  sync.Mutex

	message lipgloss.Style
	note    lipgloss.Style
	banner  lipgloss.Style
}

// New creates a console reading in and writing out.
func New(in io.Reader, out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		in:      in,
		out:     out,
		message: r.NewStyle().Foreground(lipgloss.Color("86")),
		note:    r.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		banner:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	}
}

// Print writes a message addressed to the console actor.
func (c *Console) Print(text string) {
	c.write(c.message.Render(text))
}

// Note writes a dimmed status line.
func (c *Console) Note(text string) {
	c.write(c.note.Render(text))
}

// Banner writes a highlighted heading.
func (c *Console) Banner(text string) {
	c.write(c.banner.Render(text))
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, s+"\n") //nolint:errcheck // nowhere to report a broken terminal
}

// Run reads lines until EOF or until ctx is done, passing each non-empty
// line to handle. Failed commands have already been reported to the
// console actor by the dispatcher, so only vetoes are noted here. A
// read blocked on the terminal only notices cancellation at the next line.
func (c *Console) Run(ctx context.Context, handle HandleFunc) error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		outcome, _ := handle(ctx, line) //nolint:errcheck // reported through the console actor
		switch outcome {
		case command.OutcomeVetoed:
			c.Note("(command blocked by a plugin)")
		case command.OutcomeCancel:
			c.Note("(command cancelled)")
		}
	}
	if err := scanner.Err(); err != nil {
		return oops.In("console").Wrapf(err, "read console input")
	}
	return nil
}
