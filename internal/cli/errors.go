package cli

import "fmt"

// ExitError carries a shell exit code out of a Cobra RunE function.
//
// Commands never call os.Exit directly; they return NewExitError(code) and
// [RunWithArgs] extracts the code into its [ExecuteResult]. Tests can then
// assert on exit codes without process termination; only [Execute] performs
// the real os.Exit.
type ExitError struct {
	// Code is the exit code to return to the shell. 0 means success, 1 a
	// general error; agent exit codes pass through unchanged.
	Code int
}

// Error returns "exit status N", matching the os/exec format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err is an *ExitError and extracts its code.
func IsExitError(err error) (int, bool) {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr.Code, true
	}
	return 0, false
}
