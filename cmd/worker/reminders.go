package worker

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/reminder"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Run the reminder scheduler (evaluates active triggers on a tick)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildStack(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tick := s.tick()
		log.Printf(">> reminder scheduler started tick=%s", tick)

		// run once at startup, then on every tick
		runAllTriggers(ctx, s)

		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("reminder scheduler stopping")
				return nil
			case <-ticker.C:
				runAllTriggers(ctx, s)
			}
		}
	},
}

func runAllTriggers(ctx context.Context, s *stack) {
	for _, eventType := range model.EventTypes() {
		triggers, err := s.campaigns.ListActiveTriggers(ctx, eventType)
		if err != nil {
			log.Printf("list %s triggers: %v", eventType, err)
			continue
		}
		for _, t := range triggers {
			if ctx.Err() != nil {
				return
			}
			exec, err := s.executor.Run(ctx, t.ID)
			switch {
			case errors.Is(err, reminder.ErrRunInProgress):
				log.Printf("trigger %d: run already in progress, skipping", t.ID)
			case err != nil:
				log.Printf("trigger %d: run failed: %v", t.ID, err)
			default:
				log.Printf("trigger %d: %s total=%d sent=%d failed=%d",
					t.ID, exec.Status, exec.TotalRecipients, exec.SentCount, exec.FailedCount)
			}
		}
	}
}
