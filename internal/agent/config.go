package agent

import "time"

// CrashPoint names a place in the poll cycle where a simulated crash can be
// triggered for failure-mode testing.
type CrashPoint string

const (
	// CrashNone disables crash simulation.
	CrashNone CrashPoint = ""

	// CrashAfterExecute exits after the executor returns but before the
	// journal is written: the next cycle re-executes.
	CrashAfterExecute CrashPoint = "after-execute"

	// CrashBeforeReport exits after the journal is written but before the
	// result is submitted: the next cycle finds the journal record.
	CrashBeforeReport CrashPoint = "before-report"
)

// Config defines the agent configuration.
type Config struct {
	// AgentID identifies this agent to the coordinator.
	AgentID string

	// PollInterval is the fixed sleep between cycles that found no work or
	// hit an error.
	PollInterval time.Duration

	// Crash selects a simulated crash point. Empty disables it.
	Crash CrashPoint
}

// DefaultConfig returns the default agent configuration.
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 1 * time.Second,
		Crash:        CrashNone,
	}
}
