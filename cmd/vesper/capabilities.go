package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vesper-assistant/vesper/internal/capability"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Show the registered capability roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		registry := capability.NewRegistry()
		if err := capability.RegisterManifest(registry, cfg.Capabilities.ManifestPath); err != nil {
			return fmt.Errorf("load capabilities: %w", err)
		}

		for _, d := range registry.All() {
			fmt.Printf("%s  intents: %s\n", color.CyanString("%-12s", d.AgentID),
				strings.Join(d.SupportedIntents, ", "))
			fmt.Printf("              slots: %s", strings.Join(d.RequiredSlots, ", "))
			if len(d.OptionalSlots) > 0 {
				fmt.Printf(" (optional: %s)", strings.Join(d.OptionalSlots, ", "))
			}
			fmt.Printf("  concurrency: %d  timeout: %s", d.MaxConcurrency, d.DefaultTimeout)
			if d.BestEffort {
				fmt.Print("  best-effort")
			}
			fmt.Println()
		}
		return nil
	},
}
