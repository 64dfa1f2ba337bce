package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portos-dev/portos/internal/sim"
)

func newCallCmd() *cobra.Command {
	var ops, concurrency, maxNest int
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Run the randomized call/later stress harness and report on quiescence",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := sim.Run(context.Background(), sim.Config{
				Levels:      flagLevels,
				Ops:         ops,
				Concurrency: concurrency,
				MaxNest:     maxNest,
				Seed:        uint64(flagSeed),
			})
			if err != nil {
				return err
			}
			log.Info("call: run complete",
				zap.Int64("submitted", res.Submitted),
				zap.Int64("invoked", res.Invoked),
				zap.Int64("live_blocks", res.LiveBlocks),
				zap.Int("cur_priority", int(res.CurPriority)),
				zap.Uint64("bitmap", uint64(res.Bitmap)),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&ops, "ops", 20000, "total pfunc submissions across all workers")
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "number of concurrent simulated interrupt sources")
	cmd.Flags().IntVar(&maxNest, "max-nest", 3, "maximum immediate self-nesting depth per submission")
	return cmd
}
