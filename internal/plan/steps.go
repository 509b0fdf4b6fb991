package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StepsFileName is the sidecar cache written next to the plan document.
const StepsFileName = "steps.yaml"

// stepsDoc is the YAML shape of the steps sidecar file.
type stepsDoc struct {
	Steps []Step `yaml:"steps"`
}

// StepsPathFor returns the sidecar cache path for a plan file.
func StepsPathFor(planPath string) string {
	dir := filepath.Dir(planPath)
	return filepath.Join(dir, StepsFileName)
}

// SyncSteps persists the parsed step list next to the plan document and
// reports whether the cache was rewritten.
//
// The cache pins step identities between runs: if the plan document drifts
// (steps added, renamed, renumbered), the rewrite signal lets the caller
// tell the user that recorded state may refer to reworked steps.
func SyncSteps(planPath string, p *Plan) (rewritten bool, err error) {
	path := StepsPathFor(planPath)

	if data, err := os.ReadFile(path); err == nil {
		var doc stepsDoc
		if yaml.Unmarshal(data, &doc) == nil && stepsEqual(doc.Steps, p.Steps) {
			return false, nil
		}
	}

	doc := stepsDoc{Steps: p.Steps}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal steps cache: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write steps cache: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to replace steps cache: %w", err)
	}
	return true, nil
}

// stepsEqual compares the persisted identity fields (ID, number, text);
// bodies and markers are not part of step identity.
func stepsEqual(a, b []Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Number != b[i].Number || a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}
