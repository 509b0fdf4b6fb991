package agent

import (
	"bufio"
	"encoding/json"
	"io"
)

// defaultBufferSize bounds a single stream-json line. Tool results can
// embed whole files, so the limit is generous.
const defaultBufferSize = 10 * 1024 * 1024

// Parser parses the agent's stream-json output line by line.
//
// Each line of output is one JSON object. Empty and malformed lines are
// skipped so truncated or interleaved output does not abort the run.
type Parser struct {
	// BufferSize is the maximum line length in bytes. Zero or negative
	// means the 10MB default.
	BufferSize int
}

// NewParser creates a Parser with default settings.
func NewParser() *Parser {
	return &Parser{BufferSize: defaultBufferSize}
}

// Parse reads stream-json lines from the reader and emits parsed events on
// the returned channel. The channel closes on EOF or a scanner error.
func (p *Parser) Parse(reader io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		scanner := bufio.NewScanner(reader)
		bufSize := p.BufferSize
		if bufSize <= 0 {
			bufSize = defaultBufferSize
		}
		scanner.Buffer(make([]byte, 0, 64*1024), bufSize)

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			var raw StreamEvent
			if err := json.Unmarshal([]byte(line), &raw); err != nil {
				continue
			}
			events <- NewEventFromStream(&raw)
		}
	}()

	return events
}

// ParseLine parses a single stream-json line. Unlike [Parser.Parse] it does
// not skip malformed input; useful in tests and debugging.
func ParseLine(line string) (Event, error) {
	var raw StreamEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, err
	}
	return NewEventFromStream(&raw), nil
}
