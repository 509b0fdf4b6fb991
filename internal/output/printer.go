// Package output formats stagehand's terminal output.
//
// The printer renders lifecycle step headers, verbose substeps, live agent
// and gate output, and failures, styled with lipgloss. All printing goes
// through an injected io.Writer so tests capture output from a buffer.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stagehand/internal/agent"
	"stagehand/internal/gate"
)

var (
	stepStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	substepStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// Printer writes formatted output.
type Printer struct {
	w       io.Writer
	verbose bool
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter() *Printer {
	return &Printer{w: os.Stdout}
}

// NewPrinterWithWriter creates a Printer writing to w, for tests.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// SetVerbose enables substep and live-output printing.
func (p *Printer) SetVerbose(v bool) {
	p.verbose = v
}

// Step prints a lifecycle step header.
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintln(p.w, stepStyle.Render(fmt.Sprintf(format, args...)))
}

// Substep prints a secondary line; only shown when verbose.
func (p *Printer) Substep(format string, args ...any) {
	if !p.verbose {
		return
	}
	fmt.Fprintln(p.w, substepStyle.Render("  "+fmt.Sprintf(format, args...)))
}

// Error prints a failure line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Raw prints unstyled text, used for surfacing captured collaborator
// output verbatim.
func (p *Printer) Raw(text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(p.w, strings.TrimRight(text, "\n"))
}

// AgentEvent renders one streaming agent event.
func (p *Printer) AgentEvent(e agent.Event) {
	switch {
	case e.SessionStarted:
		p.Substep("agent session started")
	case e.SessionComplete:
		p.Substep("agent session complete")
	case e.IsText():
		fmt.Fprintln(p.w, e.Text)
	case e.IsToolUse():
		line := "tool: " + e.ToolName
		if e.ToolCommand != "" {
			line += " $ " + e.ToolCommand
		} else if e.ToolFilePath != "" {
			line += " " + e.ToolFilePath
		}
		if p.verbose {
			fmt.Fprintln(p.w, toolStyle.Render("  "+line))
		}
	case e.IsToolResult():
		if p.verbose && e.ToolStdout != "" {
			fmt.Fprintln(p.w, substepStyle.Render("  "+truncateLines(e.ToolStdout, 20)))
		}
	}
}

// GateSummary renders a pipeline result, one line per check.
func (p *Printer) GateSummary(result gate.GateResult) {
	for _, c := range result.Results {
		if c.Passed {
			fmt.Fprintln(p.w, passStyle.Render(fmt.Sprintf("  gate %-6s pass", c.Name)))
			continue
		}
		fmt.Fprintln(p.w, failStyle.Render(fmt.Sprintf("  gate %-6s FAIL", c.Name)))
	}
}

// truncateLines keeps the first and last lines of long output with an
// omission marker in between.
func truncateLines(s string, max int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= max {
		return strings.Join(lines, "\n  ")
	}
	head := max / 2
	tail := max - head
	kept := append([]string{}, lines[:head]...)
	kept = append(kept, fmt.Sprintf("... (%d lines omitted) ...", len(lines)-max))
	kept = append(kept, lines[len(lines)-tail:]...)
	return strings.Join(kept, "\n  ")
}
