package cmd

import (
	"fmt"

	"github.com/ageless-collectibles/cardcataloger/internal/batchqueue"
	"github.com/spf13/cobra"
)

func newQueueCmd(cc *commandContext) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Create batch job(s) from the ready directory",
		Example: `  # Queue everything in the ready directory, 20 items per job
  cardcataloger queue

  # Smaller jobs
  cardcataloger queue --batch-size 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			size := batchSize
			if size <= 0 {
				size = cc.cfg.BatchSize
			}

			events, err := cc.openEvents()
			if err != nil {
				return err
			}
			defer events.Close()

			jobs, err := batchqueue.Build(cc.cfg.Paths.Ready, cc.cfg.Paths.Batches, size, events)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, job := range jobs {
				fmt.Fprintln(out, job)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Items per job (defaults to batch_size from the config)")
	return cmd
}
