package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fentz26/drover/internal/agent"
	"github.com/fentz26/drover/internal/executors"
	"github.com/fentz26/drover/internal/executors/delay"
	"github.com/fentz26/drover/internal/executors/httpget"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	agentID      string
	journalPath  string
	pollInterval time.Duration
	crashPoint   string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Start a drover agent",
	Long:  `Starts a worker agent which polls the coordinator for commands, executes them, and reports results. The agent keeps a local execution journal so a restart never re-executes finished work.`,
	RunE:  runAgent,
}

func init() {
	homeDir, _ := os.UserHomeDir()
	hostname, _ := os.Hostname()
	defaultID := fmt.Sprintf("agent-%s-%s", hostname, uuid.New().String()[:8])
	defaultJournal := filepath.Join(homeDir, ".drover", "journal.db")

	agentCmd.Flags().StringVar(&agentID, "id", defaultID, "Agent identifier")
	agentCmd.Flags().StringVar(&journalPath, "journal", defaultJournal, "Path to the agent journal SQLite database")
	agentCmd.Flags().DurationVar(&pollInterval, "poll", 1*time.Second, "Poll interval when idle or after an error")
	agentCmd.Flags().StringVar(&crashPoint, "crash", "", "Simulated crash point for failure testing (after-execute, before-report)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	switch agent.CrashPoint(crashPoint) {
	case agent.CrashNone, agent.CrashAfterExecute, agent.CrashBeforeReport:
	default:
		return fmt.Errorf("unknown crash point: %s", crashPoint)
	}

	journal, err := agent.OpenJournal(journalPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	registry := executors.NewRegistry()
	registry.Register(delay.New())
	registry.Register(httpget.New())
	log.Printf("Registered %d executors", registry.Count())

	cfg := &agent.Config{
		AgentID:      agentID,
		PollInterval: pollInterval,
		Crash:        agent.CrashPoint(crashPoint),
	}

	client := agent.NewHTTPCoordinator(apiAddr)
	loop := agent.NewLoop(client, journal, registry, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, stopping agent...", sig)
		cancel()
	}()

	return loop.Run(ctx)
}
