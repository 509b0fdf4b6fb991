// Package agent drives the external code-generation CLI.
//
// The agent is an opaque collaborator: stagehand hands it a prompt and a
// model identifier, watches its streaming JSON output, and reacts only to
// the exit code and the captured text. This package handles spawning the
// process, parsing its stream-json output, and converting raw events into a
// structured form the runner can display.
//
// Key types:
//   - [Executor] - interface for invoking the agent
//   - [CLIExecutor] - production implementation that spawns the binary
//   - [MockExecutor] - deterministic test double, no process spawning
//   - [Event] - parsed stream event with convenience checks
package agent

// StreamEvent is a raw JSON event from the agent's streaming output. It
// maps directly to the stream-json line format; most code works with the
// parsed [Event] instead.
type StreamEvent struct {
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype,omitempty"`
	Message       *MessageContent `json:"message,omitempty"`
	ToolUseResult *ToolResult     `json:"tool_use_result,omitempty"`
}

// MessageContent is the content of one assistant message.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is a single block within a message: "text" blocks carry
// Text, "tool_use" blocks carry Name and Input.
type ContentBlock struct {
	Type  string     `json:"type"`
	Text  string     `json:"text,omitempty"`
	Name  string     `json:"name,omitempty"`
	Input *ToolInput `json:"input,omitempty"`
}

// ToolInput is the input of a tool invocation. Which fields are populated
// depends on the tool.
type ToolInput struct {
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
}

// ToolResult is the output of a tool execution.
type ToolResult struct {
	Stdout      string `json:"stdout,omitempty"`
	Stderr      string `json:"stderr,omitempty"`
	Interrupted bool   `json:"interrupted,omitempty"`
}

// EventType classifies parsed events.
type EventType string

const (
	// EventTypeSystem is a system event, typically session initialization.
	EventTypeSystem EventType = "system"

	// EventTypeAssistant is agent output: text or a tool invocation.
	EventTypeAssistant EventType = "assistant"

	// EventTypeUser is a tool execution result returned to the agent.
	EventTypeUser EventType = "user"

	// EventTypeResult marks session completion.
	EventTypeResult EventType = "result"
)

// SubtypeInit is the subtype of the session-start system event.
const SubtypeInit = "init"

// Event is a parsed event from the agent's streaming output.
type Event struct {
	Type    EventType
	Subtype string

	// Text is the assistant text for text blocks.
	Text string

	// Tool fields, populated for tool_use blocks.
	ToolName        string
	ToolDescription string
	ToolCommand     string
	ToolFilePath    string

	// Tool result fields, populated for user events.
	ToolStdout      string
	ToolStderr      string
	ToolInterrupted bool

	SessionStarted  bool
	SessionComplete bool
}

// NewEventFromStream converts a raw [StreamEvent] into an [Event].
func NewEventFromStream(raw *StreamEvent) Event {
	e := Event{
		Type:    EventType(raw.Type),
		Subtype: raw.Subtype,
	}

	switch e.Type {
	case EventTypeSystem:
		if raw.Subtype == SubtypeInit {
			e.SessionStarted = true
		}

	case EventTypeAssistant:
		if raw.Message != nil {
			for _, block := range raw.Message.Content {
				switch block.Type {
				case "text":
					e.Text = block.Text
				case "tool_use":
					e.ToolName = block.Name
					if block.Input != nil {
						e.ToolDescription = block.Input.Description
						e.ToolCommand = block.Input.Command
						e.ToolFilePath = block.Input.FilePath
					}
				}
			}
		}

	case EventTypeUser:
		if raw.ToolUseResult != nil {
			e.ToolStdout = raw.ToolUseResult.Stdout
			e.ToolStderr = raw.ToolUseResult.Stderr
			e.ToolInterrupted = raw.ToolUseResult.Interrupted
		}

	case EventTypeResult:
		e.SessionComplete = true
	}

	return e
}

// IsText reports whether the event carries assistant text.
func (e Event) IsText() bool {
	return e.Type == EventTypeAssistant && e.Text != ""
}

// IsToolUse reports whether the event is a tool invocation.
func (e Event) IsToolUse() bool {
	return e.Type == EventTypeAssistant && e.ToolName != ""
}

// IsToolResult reports whether the event carries tool output.
func (e Event) IsToolResult() bool {
	return e.Type == EventTypeUser && (e.ToolStdout != "" || e.ToolStderr != "")
}
