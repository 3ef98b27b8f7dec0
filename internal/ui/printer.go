// Package ui renders bootstrap progress for a terminal.
//
// Colors respect the --no-color flag and the NO_COLOR environment variable,
// and are disabled automatically when the output is not a TTY.
//
//   - Red: errors
//   - Yellow: warnings, skipped work
//   - Green: completed steps
//   - Cyan: progress and neutral facts
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"

	"internet-store/storeinit/internal/orchestrator"
)

var (
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// InitColors configures global color output based on the noColor flag.
// fatih/color already honours NO_COLOR; this adds explicit control via the
// CLI flag.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Printer writes one prefixed line per status message. It implements
// orchestrator.Reporter and is safe for concurrent use.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) line(c *color.Color, prefix, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = c.Fprintf(p.w, prefix+format+"\n", args...)
}

// Info prints a cyan line with an info symbol prefix.
func (p *Printer) Info(format string, args ...any) { p.line(cyan, "ℹ ", format, args...) }

// Success prints a green line with a checkmark prefix.
func (p *Printer) Success(format string, args ...any) { p.line(green, "✓ ", format, args...) }

// Warn prints a yellow line with a warning symbol prefix.
func (p *Printer) Warn(format string, args ...any) { p.line(yellow, "⚠ ", format, args...) }

// Error prints a red line with an X prefix.
func (p *Printer) Error(format string, args ...any) { p.line(red, "✗ ", format, args...) }

// Summary prints the final status of a run followed by the per-collection
// counts of its verification report.
//
// Example output:
//
//	Bootstrap ok (internet-store)
//	=============================
//	  addresses   documents: 0  indexes: 2
func (p *Printer) Summary(r *orchestrator.BootstrapResult) {
	if r == nil {
		return
	}

	header := fmt.Sprintf("Bootstrap %s (%s)", r.Status, r.Database)

	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = bold.Fprintln(p.w, header)
	_, _ = fmt.Fprintln(p.w, strings.Repeat("=", len(header)))

	for _, ph := range r.Phases {
		c := statusColor(ph.Status)
		if ph.Error != "" {
			_, _ = c.Fprintf(p.w, "  %-14s %s: %s\n", ph.Name, ph.Status, ph.Error)
			continue
		}
		_, _ = c.Fprintf(p.w, "  %-14s %s\n", ph.Name, ph.Status)
	}

	if r.Report == nil {
		return
	}
	names := make([]string, 0, len(r.Report.IndexCounts))
	for name := range r.Report.IndexCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		docs := "-"
		if n, ok := r.Report.DocumentCounts[name]; ok {
			docs = cyan.Sprint(n)
		}
		_, _ = fmt.Fprintf(p.w, "  %-11s documents: %s  indexes: %s\n", name, docs, cyan.Sprint(r.Report.IndexCounts[name]))
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case orchestrator.StatusOK:
		return green
	case orchestrator.StatusWarn, orchestrator.StatusSkipped:
		return yellow
	case orchestrator.StatusError:
		return red
	default:
		return cyan
	}
}
