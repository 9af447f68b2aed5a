package cmd

import (
	"fmt"

	"github.com/ageless-collectibles/cardcataloger/internal/pairing"
	"github.com/spf13/cobra"
)

func newPairCmd(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Pair front/back scans from the inbox into item folders",
		Long: `Moves every <sku>_F / <sku>_B scan pair from the inbox into its own
folder under the ready directory. Pairs with an invalid SKU are moved to the
error directory with an error.txt note. Unpaired scans stay in the inbox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := cc.openEvents()
			if err != nil {
				return err
			}
			defer events.Close()

			moved, err := pairing.Run(pairing.Dirs{
				Inbox: cc.cfg.Paths.Inbox,
				Ready: cc.cfg.Paths.Ready,
				Error: cc.cfg.Paths.Error,
			}, events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paired %d card(s).\n", moved)
			return nil
		},
	}
}
