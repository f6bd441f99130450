package worker

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var sweeperCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Run the pending notification sweeper (flush or expire waiting batches)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildStack(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tick := s.tick()
		log.Printf(">> pending sweeper started tick=%s ttl=%dh", tick, s.cfg.Reminders.PendingTTLHours)

		sweep(ctx, s)

		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("pending sweeper stopping")
				return nil
			case <-ticker.C:
				sweep(ctx, s)
			}
		}
	},
}

func sweep(ctx context.Context, s *stack) {
	stats, err := s.pending.Sweep(ctx)
	if err != nil {
		log.Printf("sweep failed: %v", err)
		return
	}
	if stats.Sent > 0 || stats.Expired > 0 {
		log.Printf("sweep done sent=%d expired=%d unchanged=%d", stats.Sent, stats.Expired, stats.Unchanged)
	}
}
