package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vesper-assistant/vesper/internal/agents/reminder"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "List stored reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := reminder.OpenStore(cfg.Capabilities.ReminderDBPath)
		if err != nil {
			return fmt.Errorf("open reminder store: %w", err)
		}
		defer store.Close()

		reminders, err := store.List(context.Background())
		if err != nil {
			return err
		}
		if len(reminders) == 0 {
			fmt.Println("No reminders.")
			return nil
		}
		for _, r := range reminders {
			fmt.Printf("%s %q at %s\n", color.CyanString("#%d", r.ID), r.Text, r.RemindAt)
		}
		return nil
	},
}

var remindersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a reminder by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad reminder id %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := reminder.OpenStore(cfg.Capabilities.ReminderDBPath)
		if err != nil {
			return fmt.Errorf("open reminder store: %w", err)
		}
		defer store.Close()

		if err := store.Delete(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("%s deleted reminder #%d\n", color.GreenString("✓"), id)
		return nil
	},
}

func init() {
	remindersCmd.AddCommand(remindersDeleteCmd)
}
