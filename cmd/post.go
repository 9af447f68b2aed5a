package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/ageless-collectibles/cardcataloger/internal/cataloging"
	"github.com/ageless-collectibles/cardcataloger/internal/hints"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newPostCmd(cc *commandContext) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post-process a queued batch",
		Long: `Runs every item of a queued batch through the configured provider,
normalizes and quality-checks the answers, and writes the results under
<output>/<job-id>/results. The output root is printed last, also for batches
that were aborted after too many provider failures.`,
		Example: `  cardcataloger post --job-id batch_1700000000_1a2b3c4d`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cc.cfg
			provider, err := cataloging.NewProvider(cfg)
			if err != nil {
				return err
			}

			events, err := cc.openEvents()
			if err != nil {
				return err
			}
			defer events.Close()

			builder := hints.NewBuilder(hints.Options{
				PromptsDir:    cfg.Paths.Prompts,
				ExemplarLimit: cfg.PrimaryExemplars,
				ImageMaxEdge:  cfg.ImageMaxEdge,
				MaxTokens:     cfg.MaxTokens,
			})
			if cfg.Live() {
				model := cfg.ModelName
				if model == "" {
					model = cataloging.DefaultModel(cfg.Backend)
				}
				slog.Info("Using live provider", "backend", cfg.Backend, "model", model)
			}
			processor := cataloging.NewProcessor(cataloging.OptionsFromConfig(cfg), provider, builder, events)

			result, runErr := processor.Process(cmd.Context(), jobID)
			out := cmd.OutOrStdout()
			renderPostResult(out, result)
			fmt.Fprintln(out, result.OutputRoot)
			return runErr
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "Batch job id to process")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func renderPostResult(out io.Writer, result cataloging.Result) {
	if isTerminal(out) && len(result.Items) > 0 {
		fmt.Fprintln(out, renderItemTable(result.Items))
	} else {
		for _, item := range result.Items {
			fmt.Fprintf(out, "[POST] %s: %s\n", item.SKU, item.Summary)
		}
	}
	if result.Aborted {
		fmt.Fprintf(out, "[POST] Aborted remaining SKUs after %d provider failure(s).\n", result.Failures)
	}
}

func renderItemTable(items []cataloging.ItemResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"SKU", "Category", "Conf", "Review", "Summary"})
	for _, item := range items {
		review := ""
		if item.NeedsReview {
			review = "yes"
		}
		tw.AppendRow(table.Row{
			item.SKU,
			string(item.Record.Category),
			strconv.FormatFloat(item.Record.Conf, 'f', 2, 64),
			review,
			item.Summary,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
