package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/state"
)

func TestParse_NumberedSteps(t *testing.T) {
	doc := `# Plan

1. Add parser
   Parse the input format.

2. Add writer
   Emit the output format.
`
	p, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)

	assert.Equal(t, "1", p.Steps[0].ID)
	assert.Equal(t, 1, p.Steps[0].Number)
	assert.Equal(t, "Add parser", p.Steps[0].Text)
	assert.Equal(t, "Parse the input format.", p.Steps[0].Body)

	assert.Equal(t, "2", p.Steps[1].ID)
	assert.Equal(t, "Add writer", p.Steps[1].Text)
}

func TestParse_DeclaredStateMarker(t *testing.T) {
	doc := `1. Add parser
   state: implemented
2. Add writer
`
	p, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, state.StateImplemented, p.Steps[0].DeclaredState)
	assert.Equal(t, state.StepState(""), p.Steps[1].DeclaredState)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "empty document",
			doc:  "just prose, no steps",
			want: "no steps",
		},
		{
			name: "duplicate step number",
			doc:  "1. First\n1. Also first\n",
			want: "duplicate step number",
		},
		{
			name: "non-monotonic step number",
			doc:  "2. Second\n1. First\n",
			want: "non-monotonic",
		},
		{
			name: "unknown state marker",
			doc:  "1. First\n   state: mostly-done\n",
			want: "unknown step state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			require.Error(t, err)
			assert.True(t, IsParseError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_GapsInNumberingAreAllowed(t *testing.T) {
	p, err := Parse("1. First\n5. Fifth\n10. Tenth\n")
	require.NoError(t, err)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, "5", p.Steps[1].ID)
	assert.Equal(t, "10", p.Steps[2].ID)
}

func TestParse_ProseBeforeFirstStepIsIgnored(t *testing.T) {
	doc := `state: implemented

1. Only step
`
	// A marker outside any step body is plain prose.
	p, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, state.StepState(""), p.Steps[0].DeclaredState)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(path, []byte("1. Step one\n"), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Steps, 1)

	_, err = Load(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestPlan_Find(t *testing.T) {
	p, err := Parse("1. One\n2. Two\n")
	require.NoError(t, err)

	s := p.Find("2")
	require.NotNil(t, s)
	assert.Equal(t, "Two", s.Text)
	assert.Nil(t, p.Find("9"))
}
