package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"stagehand/internal/agent"
	"stagehand/internal/gate"
)

func TestPrinterStep(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf)

	p.Step("step %s: %s", "3", "implement")

	assert.Contains(t, buf.String(), "step 3: implement")
}

func TestPrinterSubstepRequiresVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf)

	p.Substep("running gates")
	assert.Empty(t, buf.String())

	p.SetVerbose(true)
	p.Substep("running gates")
	assert.Contains(t, buf.String(), "running gates")
}

func TestPrinterRaw(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf)

	p.Raw("")
	assert.Empty(t, buf.String())

	p.Raw("vet failed\n")
	assert.Equal(t, "vet failed\n", buf.String())
}

func TestPrinterAgentEventText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf)

	p.AgentEvent(agent.Event{Type: agent.EventTypeAssistant, Text: "done"})

	assert.Contains(t, buf.String(), "done")
}

func TestPrinterAgentEventToolUseOnlyVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf)

	ev := agent.Event{Type: agent.EventTypeAssistant, ToolName: "Bash", ToolCommand: "go test ./..."}
	p.AgentEvent(ev)
	assert.Empty(t, buf.String())

	p.SetVerbose(true)
	p.AgentEvent(ev)
	out := buf.String()
	assert.Contains(t, out, "Bash")
	assert.Contains(t, out, "go test ./...")
}

func TestPrinterGateSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(&buf)

	p.GateSummary(gate.GateResult{Results: []gate.CheckResult{
		{Name: "vet", Passed: true},
		{Name: "build", Passed: false, Output: "boom"},
	}})

	out := buf.String()
	assert.Contains(t, out, "vet")
	assert.Contains(t, out, "pass")
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "FAIL")
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "line"
	}
	got := truncateLines(strings.Join(lines, "\n"), 20)

	assert.Contains(t, got, "lines omitted")
	assert.Less(t, strings.Count(got, "\n"), 25)
}
