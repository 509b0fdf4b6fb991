// Package plan parses Markdown plan documents into ordered steps.
//
// A step begins at an ordered-list heading of the form "N. text". Everything
// until the next heading (or end of document) is the step's body. A body may
// carry an optional inline marker "state: <value>" that declares the step's
// starting lifecycle state; the marker is only a hint and is superseded by
// any entry in the state store.
//
// Step IDs are the decimal step numbers and must be stable across re-parses:
// duplicate or non-monotonic numbers are a parse error, not a reordering.
package plan

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"stagehand/internal/state"
)

// ParseError describes a malformed plan document.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("plan line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("plan: %s", e.Msg)
}

// IsParseError reports whether err is (or wraps) a [ParseError].
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Step is one unit of plan work.
type Step struct {
	// ID is the stable identifier, the decimal step number.
	ID string `yaml:"id"`

	// Number is the parsed step number.
	Number int `yaml:"number"`

	// Text is the heading text describing the work.
	Text string `yaml:"text"`

	// Body is everything between this heading and the next, trimmed.
	Body string `yaml:"-"`

	// DeclaredState is the optional "state:" marker from the body. Empty
	// when the body carries no marker.
	DeclaredState state.StepState `yaml:"-"`
}

// Plan is an ordered sequence of steps in document order.
type Plan struct {
	Steps []Step
}

var (
	headingRe = regexp.MustCompile(`^\s*(\d+)\.\s+(.+?)\s*$`)
	markerRe  = regexp.MustCompile(`^\s*state:\s*(\S.*?)\s*$`)
)

// Parse parses a plan document.
//
// It fails with a [ParseError] when the document contains no steps, a
// duplicate step number, a non-monotonic step number, or an unrecognized
// state marker value.
func Parse(text string) (*Plan, error) {
	var steps []Step
	lastNumber := 0
	current := -1 // index into steps of the step whose body is accumulating
	var body []string

	flush := func() {
		if current < 0 {
			return
		}
		steps[current].Body = strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
	}

	for i, line := range strings.Split(text, "\n") {
		lineNum := i + 1
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			if current >= 0 {
				if sm := markerRe.FindStringSubmatch(line); sm != nil {
					st, err := state.ParseState(sm[1])
					if err != nil {
						return nil, &ParseError{Line: lineNum, Msg: err.Error()}
					}
					steps[current].DeclaredState = st
				}
				body = append(body, line)
			}
			continue
		}

		number, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, &ParseError{Line: lineNum, Msg: fmt.Sprintf("invalid step number %q", m[1])}
		}
		if number == lastNumber {
			return nil, &ParseError{Line: lineNum, Msg: fmt.Sprintf("duplicate step number: %d", number)}
		}
		if number < lastNumber {
			return nil, &ParseError{Line: lineNum, Msg: fmt.Sprintf("non-monotonic step number: %d after %d", number, lastNumber)}
		}
		flush()

		steps = append(steps, Step{
			ID:     strconv.Itoa(number),
			Number: number,
			Text:   m[2],
		})
		current = len(steps) - 1
		lastNumber = number
	}
	flush()

	if len(steps) == 0 {
		return nil, &ParseError{Msg: "no steps found in plan document"}
	}

	return &Plan{Steps: steps}, nil
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(string(data))
}

// Find returns the step with the given ID, or nil.
func (p *Plan) Find(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}
