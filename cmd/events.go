/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skinguardian/client/internal/events"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Workflow outcome events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Prints outcome events as JSON lines until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()

		backend, err := events.Open(ctx, cfg.Events)
		if err != nil {
			return fmt.Errorf("open events backend: %w", err)
		}
		if _, ok := backend.(events.Nop); ok {
			return errors.New("no events backend configured, set EVENTS_BACKEND")
		}
		publisher := events.NewPublisher(backend, cfg.Events.Channel, newLogger(cfg.LogLevel))
		defer publisher.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		err = publisher.Subscribe(ctx, func(event events.Event) error {
			return enc.Encode(event)
		})
		if err != nil && !errors.Is(err, ctx.Err()) {
			return fmt.Errorf("subscribe: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
