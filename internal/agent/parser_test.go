package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, e Event)
	}{
		{
			name: "session init",
			line: `{"type":"system","subtype":"init"}`,
			check: func(t *testing.T, e Event) {
				assert.Equal(t, EventTypeSystem, e.Type)
				assert.True(t, e.SessionStarted)
			},
		},
		{
			name: "assistant text",
			line: `{"type":"assistant","message":{"content":[{"type":"text","text":"Working on it"}]}}`,
			check: func(t *testing.T, e Event) {
				assert.True(t, e.IsText())
				assert.Equal(t, "Working on it", e.Text)
			},
		},
		{
			name: "tool use",
			line: `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"go test ./...","description":"Run tests"}}]}}`,
			check: func(t *testing.T, e Event) {
				assert.True(t, e.IsToolUse())
				assert.Equal(t, "Bash", e.ToolName)
				assert.Equal(t, "go test ./...", e.ToolCommand)
				assert.Equal(t, "Run tests", e.ToolDescription)
			},
		},
		{
			name: "tool result",
			line: `{"type":"user","tool_use_result":{"stdout":"ok","stderr":""}}`,
			check: func(t *testing.T, e Event) {
				assert.True(t, e.IsToolResult())
				assert.Equal(t, "ok", e.ToolStdout)
			},
		},
		{
			name: "session complete",
			line: `{"type":"result"}`,
			check: func(t *testing.T, e Event) {
				assert.True(t, e.SessionComplete)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseLine(tt.line)
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestParseLine_Malformed(t *testing.T) {
	_, err := ParseLine(`{"type":`)
	assert.Error(t, err)
}

func TestParser_Parse(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"system","subtype":"init"}`,
		``,
		`not json at all`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}`,
		`{"type":"result"}`,
	}, "\n")

	var events []Event
	for e := range NewParser().Parse(strings.NewReader(input)) {
		events = append(events, e)
	}

	// Empty and malformed lines are skipped.
	require.Len(t, events, 3)
	assert.True(t, events[0].SessionStarted)
	assert.Equal(t, "hello", events[1].Text)
	assert.True(t, events[2].SessionComplete)
}
