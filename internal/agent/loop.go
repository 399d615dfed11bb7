package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fentz26/drover/internal/executors"
)

// Loop is the single-threaded agent control loop. Each cycle polls the
// coordinator for one command, consults the journal, executes, records, and
// reports, strictly in that order. Errors never terminate the loop; only
// the crash-simulation hooks exit the process.
type Loop struct {
	coordinator Coordinator
	journal     *Journal
	registry    *executors.Registry
	config      *Config

	// exit is called by crash-simulation hooks. Overridable in tests.
	exit func(code int)
}

// NewLoop creates a new agent loop.
func NewLoop(c Coordinator, j *Journal, r *executors.Registry, cfg *Config) *Loop {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Loop{
		coordinator: c,
		journal:     j,
		registry:    r,
		config:      cfg,
		exit:        os.Exit,
	}
}

// Run drives poll cycles until the context is cancelled. Claiming,
// executing, and submitting happen strictly sequentially; the loop suspends
// while an executor runs, since the coordinator has already bound the
// command exclusively to this agent.
func (l *Loop) Run(ctx context.Context) error {
	log.Printf("Agent %s polling every %s", l.config.AgentID, l.config.PollInterval)

	for {
		worked, err := l.cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("Agent %s cycle error: %v", l.config.AgentID, err)
		}

		if worked && err == nil {
			// Completed a command; poll again immediately.
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.config.PollInterval):
		}
	}
}

// cycle runs one poll iteration. It reports whether a command was handled.
func (l *Loop) cycle(ctx context.Context) (bool, error) {
	cmd, err := l.coordinator.Claim(l.config.AgentID)
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}
	if cmd == nil {
		return false, nil
	}

	done, err := l.journal.AlreadyExecuted(cmd.ID)
	if err != nil {
		return false, fmt.Errorf("journal check: %w", err)
	}
	if done {
		// The coordinator still regards this command as unfinished even
		// though this agent already executed it, typically after a crash
		// before an earlier submit landed. Never re-execute.
		return false, fmt.Errorf("command %s already executed locally, refusing to re-execute", cmd.ID)
	}

	result, err := l.registry.Execute(ctx, cmd)
	if err != nil {
		// Do not mark executed and do not submit; the command stays
		// running until coordinator recovery reclaims it.
		return false, fmt.Errorf("execute %s (%s): %w", cmd.ID, cmd.Type, err)
	}

	if l.config.Crash == CrashAfterExecute {
		log.Printf("Agent %s simulated crash after execute (command %s)", l.config.AgentID, cmd.ID)
		l.exit(1)
		return false, nil
	}

	if err := l.journal.MarkExecuted(cmd.ID); err != nil {
		return false, fmt.Errorf("journal mark %s: %w", cmd.ID, err)
	}

	if l.config.Crash == CrashBeforeReport {
		log.Printf("Agent %s simulated crash before report (command %s)", l.config.AgentID, cmd.ID)
		l.exit(1)
		return false, nil
	}

	if err := l.coordinator.Submit(cmd.ID, l.config.AgentID, result); err != nil {
		return false, fmt.Errorf("submit %s: %w", cmd.ID, err)
	}

	log.Printf("Agent %s completed command %s (%s)", l.config.AgentID, cmd.ID, cmd.Type)
	return true, nil
}
