package engine

import "fmt"

// ConfigError reports a malformed trial configuration. It is raised at
// construction, before any simulation runs, and is never recoverable
// within the same configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid trial configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TrialError reports a failure inside a running trial's generation
// loop, including a mid-run cancellation, with the context's error as
// the cause. It is isolated to that trial; extinction is never reported
// this way.
type TrialError struct {
	Generation int
	Err        error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial failed at generation %d: %v", e.Generation, e.Err)
}

func (e *TrialError) Unwrap() error {
	return e.Err
}
