package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/config"
)

func TestMockExecutor_RecordsRequestsAndReplaysEvents(t *testing.T) {
	mock := &MockExecutor{
		Events: []Event{
			{Type: EventTypeSystem, SessionStarted: true},
			{Type: EventTypeAssistant, Text: "done"},
			{Type: EventTypeResult, SessionComplete: true},
		},
		Output: "done\n",
	}

	var seen []Event
	result, err := mock.Invoke(context.Background(), Request{Prompt: "implement step 1", Model: "sonnet"}, func(e Event) {
		seen = append(seen, e)
	})
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, "done\n", result.Output)
	assert.Len(t, seen, 3)
	require.Len(t, mock.Requests, 1)
	assert.Equal(t, "sonnet", mock.Requests[0].Model)
	assert.Contains(t, mock.Requests[0].Prompt, "step 1")
}

func TestCLIExecutor_DrainsOversizedStreamLines(t *testing.T) {
	// The fake agent emits one line far over the parser's cap, then keeps
	// writing. If the remainder of the pipe is not drained after the parser
	// stops, the process blocks on the full pipe and Invoke never returns.
	dir := t.TempDir()
	script := filepath.Join(dir, "agent.sh")
	body := "#!/bin/sh\n" +
		"head -c 300000 /dev/zero | tr '\\0' 'a'\n" +
		"echo\n" +
		"echo '{\"type\":\"result\"}'\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	executor := NewCLIExecutor(config.AgentConfig{BinaryPath: script, OutputFormat: "stream-json"}, dir)
	executor.parser = &Parser{BufferSize: 64 * 1024}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := executor.Invoke(ctx, Request{Prompt: "x", Model: "sonnet"}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success())
}

func TestMockExecutor_Failure(t *testing.T) {
	mock := &MockExecutor{ExitCode: 2, Output: "agent blew up"}

	result, err := mock.Invoke(context.Background(), Request{Prompt: "x", Model: "sonnet"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 2, result.ExitCode)
}
