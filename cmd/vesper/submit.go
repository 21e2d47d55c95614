package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vesper-assistant/vesper/internal/agents"
	"github.com/vesper-assistant/vesper/internal/agents/reminder"
	"github.com/vesper-assistant/vesper/internal/capability"
	"github.com/vesper-assistant/vesper/internal/config"
	"github.com/vesper-assistant/vesper/internal/logging"
	"github.com/vesper-assistant/vesper/internal/orchestrator"
	"github.com/vesper-assistant/vesper/internal/supervisor"
	"github.com/vesper-assistant/vesper/pkg/models"
)

var (
	submitIntent     string
	submitConfidence float64
	submitEntities   []string
	submitSession    string
	submitJSON       bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <utterance>",
	Short: "Submit a recognized intent for execution",
	Long: `Submit one recognized intent, as the speech pipeline would.

The utterance is the raw text; the intent name, confidence, and entities come
from flags since this CLI sits behind the recognizer:

  vesper submit "remind me to submit the report at 3 PM" \
    --intent reminder.create \
    --entity text="submit the report" --entity datetime="3 PM"

Compound utterances split on "and"/"then"/commas are planned as multiple
tasks:

  vesper submit "open firefox and search for cheap flights" \
    --intent app.open \
    --entity application=firefox --entity search_query="cheap flights"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitIntent, "intent", "", "Recognized intent name (required)")
	submitCmd.Flags().Float64Var(&submitConfidence, "confidence", 0.9, "Recognizer confidence in [0,1]")
	submitCmd.Flags().StringArrayVar(&submitEntities, "entity", nil, "Entity as slot=value (repeatable)")
	submitCmd.Flags().StringVar(&submitSession, "session", "default", "Session ID for conversation context")
	submitCmd.Flags().BoolVar(&submitJSON, "json", false, "Print the raw response as JSON")
	submitCmd.MarkFlagRequired("intent")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := capability.NewRegistry()
	if err := capability.RegisterManifest(registry, cfg.Capabilities.ManifestPath); err != nil {
		return fmt.Errorf("load capabilities: %w", err)
	}
	closeAgents, err := bindAgents(registry, cfg)
	if err != nil {
		return err
	}
	defer closeAgents()

	orch, err := orchestrator.New(orchestrator.RequiredConfig{Registry: registry},
		orchestrator.WithLogger(logger),
		orchestrator.WithMinConfidence(cfg.Resolver.MinConfidence),
		orchestrator.WithSessionTTL(cfg.Session.TTL),
		orchestrator.WithMaxContext(cfg.Session.MaxContext),
		orchestrator.WithSupervisorConfig(supervisor.Config{
			MaxRetries:  cfg.Supervisor.MaxRetries,
			BackoffBase: cfg.Supervisor.BackoffBase,
			BackoffCap:  cfg.Supervisor.BackoffCap,
			CancelGrace: cfg.Supervisor.CancelGrace,
			PlanBudget:  cfg.Supervisor.PlanBudget,
			EventBuffer: cfg.Supervisor.EventBuffer,
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for ev := range orch.Events() {
			renderEvent(ev)
		}
	}()

	entities, err := parseEntities(submitEntities)
	if err != nil {
		return err
	}

	resp := orch.SubmitIntent(ctx, submitSession, models.Intent{
		Name:       submitIntent,
		Confidence: submitConfidence,
		Entities:   entities,
		RawText:    strings.Join(args, " "),
	})

	orch.Close()
	<-rendered

	return renderResponse(resp)
}

// bindAgents attaches an implementation to every registered descriptor. The
// reminder agent persists to SQLite; everything else runs scripted.
func bindAgents(registry *capability.Registry, cfg *config.Config) (func(), error) {
	closers := func() {}

	for _, d := range registry.All() {
		var a capability.Agent
		if d.AgentID == "reminder" {
			store, err := reminder.OpenStore(cfg.Capabilities.ReminderDBPath)
			if err != nil {
				return nil, fmt.Errorf("open reminder store: %w", err)
			}
			closers = func() { store.Close() }
			a = reminder.NewAgent(store)
		} else {
			a = agents.NewScriptedAgent(d.AgentID)
		}
		if err := registry.Bind(d.AgentID, a); err != nil {
			return nil, err
		}
	}
	return closers, nil
}

// parseEntities turns repeated slot=value flags into an entity map.
func parseEntities(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		slot, value, found := strings.Cut(p, "=")
		if !found || slot == "" {
			return nil, fmt.Errorf("bad --entity %q, want slot=value", p)
		}
		out[slot] = value
	}
	return out, nil
}

// renderEvent prints one supervisor event to the terminal.
func renderEvent(ev supervisor.Event) {
	switch ev.Type {
	case supervisor.EventPlanStarted:
		fmt.Printf("%s plan %s (%s)\n", color.CyanString("▶"), ev.PlanID, ev.Message)
	case supervisor.EventTaskStarted:
		fmt.Printf("  %s %s attempt %d\n", color.CyanString("→"), ev.AgentID, ev.Attempt)
	case supervisor.EventTaskRetrying:
		fmt.Printf("  %s %s attempt %d failed: %v\n", color.YellowString("↻"), ev.AgentID, ev.Attempt, ev.Err)
	case supervisor.EventTaskSucceeded:
		fmt.Printf("  %s %s\n", color.GreenString("✓"), ev.AgentID)
	case supervisor.EventTaskFailed:
		fmt.Printf("  %s %s: %s\n", color.RedString("✗"), ev.AgentID, ev.Message)
	case supervisor.EventTaskTimedOut:
		fmt.Printf("  %s %s timed out\n", color.RedString("✗"), ev.AgentID)
	case supervisor.EventTaskCancelled:
		fmt.Printf("  %s %s cancelled: %s\n", color.YellowString("⊘"), ev.AgentID, ev.Message)
	case supervisor.EventPlanCompleted:
		fmt.Printf("%s plan %s done\n", color.CyanString("■"), ev.PlanID)
	}
}

// renderResponse prints the final structured response.
func renderResponse(resp *models.Response) error {
	if submitJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	switch resp.OverallStatus {
	case models.StatusSucceeded:
		fmt.Printf("\n%s %s\n", color.GreenString("✓"), resp.OverallStatus)
	case models.StatusPartialSuccess:
		fmt.Printf("\n%s %s\n", color.YellowString("⚠"), resp.OverallStatus)
	default:
		fmt.Printf("\n%s %s\n", color.RedString("✗"), resp.OverallStatus)
	}

	for _, tr := range resp.PerTask {
		line := fmt.Sprintf("  %s: %s", tr.AgentID, tr.State)
		if tr.Err != "" {
			line += " (" + tr.Err + ")"
		}
		if tr.Degraded {
			line += " [degraded]"
		}
		fmt.Println(line)
	}
	if resp.FollowUpPrompt != "" {
		fmt.Printf("\n%s %s\n", color.CyanString("?"), resp.FollowUpPrompt)
	}
	return nil
}
