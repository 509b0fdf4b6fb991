// Package config provides configuration loading and management for stagehand.
//
// Configuration is loaded using Viper, supporting YAML config files and
// environment variable overrides. The defaults work out of the box; files
// and STAGEHAND_-prefixed environment variables override them.
//
// Key types:
//   - [Config] is the root configuration container
//   - [Loader] handles Viper-based loading
//   - [StageConfig] carries the per-stage model override and prompt template
//   - [GateConfig] defines one verification command in the gating pipeline
//
// Model resolution is validated at load time: every stage must resolve to a
// recognized model identifier, through its own override or the program-wide
// default. Ambiguity surfaces as a [ConfigError] before any step is touched,
// never mid-run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"stagehand/internal/state"
)

// ConfigError describes an invalid or ambiguous configuration.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Msg
}

// IsConfigError reports whether err is (or wraps) a [ConfigError].
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Config is the root configuration structure.
type Config struct {
	// Agent contains the external code-generation CLI settings.
	Agent AgentConfig `mapstructure:"agent"`

	// Models controls model resolution: the program-wide default and the
	// catalog of recognized identifiers.
	Models ModelConfig `mapstructure:"models"`

	// Stages maps stage numbers ("1".."5") to per-stage overrides.
	Stages map[string]StageConfig `mapstructure:"stages"`

	// Gates is the ordered verification pipeline. Empty means the built-in
	// {lint, build, test} defaults for a Go workdir.
	Gates []GateConfig `mapstructure:"gates"`

	// Commit contains the stage-5 checkpoint settings.
	Commit CommitConfig `mapstructure:"commit"`

	// Output contains terminal output settings.
	Output OutputConfig `mapstructure:"output"`
}

// AgentConfig contains the code-generation agent CLI settings.
type AgentConfig struct {
	// BinaryPath is the agent binary. Default: "claude" (assumed on PATH).
	// Can be overridden with STAGEHAND_AGENT_PATH.
	BinaryPath string `mapstructure:"binary_path"`

	// OutputFormat is passed to the agent CLI; "stream-json" enables
	// structured event parsing.
	OutputFormat string `mapstructure:"output_format"`

	// ExtraArgs are prepended to every agent invocation.
	ExtraArgs []string `mapstructure:"extra_args"`
}

// ModelConfig controls model identifier resolution.
type ModelConfig struct {
	// Default is the stage-independent fallback model. A stage with no
	// override uses this; if it is empty too, loading fails.
	Default string `mapstructure:"default"`

	// Catalog lists the recognized model identifiers. Identifiers with a
	// "claude-" prefix (fully qualified model names) are always recognized.
	Catalog []string `mapstructure:"catalog"`
}

// StageConfig is the per-stage configuration.
type StageConfig struct {
	// Model overrides the default model for this stage.
	Model string `mapstructure:"model"`

	// Prompt is a Go text/template body for the stage's agent prompt.
	// Available fields: {{.StepID}}, {{.StepText}}, {{.Action}},
	// {{.PlanPath}}, {{.DiffPath}}.
	Prompt string `mapstructure:"prompt"`
}

// GateConfig defines one verification command in the gating pipeline.
type GateConfig struct {
	// Name labels the check in output ("lint", "build", "test").
	Name string `mapstructure:"name"`

	// Command and Args form the verification command line.
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`

	// CountCommand, when set, marks this as the test check and provides the
	// test-count signal: the count is the number of non-empty lines the
	// command prints.
	CountCommand string   `mapstructure:"count_command"`
	CountArgs    []string `mapstructure:"count_args"`
}

// CommitConfig contains the stage-5 checkpoint settings.
type CommitConfig struct {
	// MessageTemplate is a Go text/template body for the commit message.
	// Available fields: {{.StepID}}, {{.StepText}}.
	MessageTemplate string `mapstructure:"message_template"`
}

// OutputConfig contains terminal output settings.
type OutputConfig struct {
	// TruncateLength is the maximum prompt preview length in headers.
	TruncateLength int `mapstructure:"truncate_length"`
}

// PromptData is the template payload for stage prompts.
type PromptData struct {
	StepID   string
	StepText string
	Action   string
	PlanPath string
	DiffPath string
}

// CommitData is the template payload for commit messages.
type CommitData struct {
	StepID   string
	StepText string
}

// DefaultConfig returns a [Config] with working defaults: a claude agent,
// sonnet as the default model with opus on the review-heavy stages, and
// Go-toolchain gates.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			BinaryPath:   "claude",
			OutputFormat: "stream-json",
		},
		Models: ModelConfig{
			Default: "sonnet",
			Catalog: []string{"sonnet", "opus", "haiku"},
		},
		Stages: map[string]StageConfig{
			"1": {
				Prompt: "You are running non-interactively. Do not ask for confirmation.\n" +
					"Action: {{.Action}}\nStep {{.StepID}}: {{.StepText}}\nPlan file: {{.PlanPath}}\n" +
					"Implement the step, apply the necessary changes, and exit.",
			},
			"2": {
				Model: "opus",
				Prompt: "You are running non-interactively. Do not ask for confirmation.\n" +
					"Action: {{.Action}}\nStep {{.StepID}}: {{.StepText}}\nPlan file: {{.PlanPath}}\nDiff file: {{.DiffPath}}\n" +
					"Inspect the pending changes in the diff file. If they do not match the step's intent, correct them, then exit.",
			},
			"3": {
				Prompt: "You are running non-interactively. Do not ask for confirmation.\n" +
					"Action: {{.Action}}\nStep {{.StepID}}: {{.StepText}}\nPlan file: {{.PlanPath}}\nDiff file: {{.DiffPath}}\n" +
					"Add unit or integration coverage appropriate to the step: a long-running service needs a local-harness test, a command-line surface needs a process-spawn test. Never delete existing tests unless the functionality itself was removed; if you do remove any, print a line starting with 'removed-tests:' explaining why. Then exit.",
			},
			"4": {
				Model: "opus",
				Prompt: "You are running non-interactively. Do not ask for confirmation.\n" +
					"Action: {{.Action}}\nStep {{.StepID}}: {{.StepText}}\nPlan file: {{.PlanPath}}\nDiff file: {{.DiffPath}}\n" +
					"Verify the added tests actually exercise the described feature: check coverage and assertion quality, strengthen weak tests, then exit.",
			},
		},
		Commit: CommitConfig{
			MessageTemplate: "stage implemented-finalized: step {{.StepID}} - {{.StepText}}",
		},
		Output: OutputConfig{
			TruncateLength: 60,
		},
	}
}

// Validate checks stage keys and model resolution.
//
// Every stage 1..5 must resolve to a recognized model identifier; a stage
// key outside that range, an unrecognized override, or a missing default is
// a [ConfigError].
func (c *Config) Validate() error {
	for key, sc := range c.Stages {
		n, err := strconv.Atoi(key)
		if err != nil || n < state.MinStage || n > state.MaxStage {
			return &ConfigError{Msg: fmt.Sprintf("invalid stage key %q (want %d..%d)", key, state.MinStage, state.MaxStage)}
		}
		if sc.Model != "" && !c.recognized(sc.Model) {
			return &ConfigError{Msg: fmt.Sprintf("stage %s: unrecognized model %q", key, sc.Model)}
		}
	}
	for n := state.MinStage; n <= state.MaxStage; n++ {
		if _, err := c.ModelFor(n); err != nil {
			return err
		}
	}
	return nil
}

// ModelFor resolves the model for a stage: the stage's override when set,
// otherwise the program-wide default. No default is a [ConfigError].
func (c *Config) ModelFor(stage int) (string, error) {
	if sc, ok := c.Stages[strconv.Itoa(stage)]; ok && sc.Model != "" {
		if !c.recognized(sc.Model) {
			return "", &ConfigError{Msg: fmt.Sprintf("stage %d: unrecognized model %q", stage, sc.Model)}
		}
		return sc.Model, nil
	}
	if c.Models.Default == "" {
		return "", &ConfigError{Msg: fmt.Sprintf("stage %d has no model and no default is configured", stage)}
	}
	if !c.recognized(c.Models.Default) {
		return "", &ConfigError{Msg: fmt.Sprintf("default model %q is not recognized", c.Models.Default)}
	}
	return c.Models.Default, nil
}

func (c *Config) recognized(model string) bool {
	if strings.HasPrefix(model, "claude-") {
		return true
	}
	for _, m := range c.Models.Catalog {
		if m == model {
			return true
		}
	}
	return false
}

// PromptFor expands the stage's prompt template with the given data.
func (c *Config) PromptFor(stage int, data PromptData) (string, error) {
	sc, ok := c.Stages[strconv.Itoa(stage)]
	if !ok || sc.Prompt == "" {
		return "", &ConfigError{Msg: fmt.Sprintf("stage %d has no prompt template", stage)}
	}
	return expandTemplate(fmt.Sprintf("stage-%d", stage), sc.Prompt, data)
}

// CommitMessage expands the commit message template for a step.
func (c *Config) CommitMessage(data CommitData) (string, error) {
	return expandTemplate("commit-message", c.Commit.MessageTemplate, data)
}

func expandTemplate(name, body string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to expand %s template: %w", name, err)
	}
	return buf.String(), nil
}
