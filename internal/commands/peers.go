package commands

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

func peersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Inspect or purge the persisted peer cache",
	}
	cmd.AddCommand(peersListCmd(), peersPurgeCmd())
	return cmd
}

func currentAccount(cmd *cobra.Command) (int64, error) {
	account, err := env.store.GetSettingInt64(cmd.Context(), accountSetting, 0)
	if err != nil {
		return 0, err
	}
	if account == 0 {
		return 0, errors.New("no signed in account recorded; run tgops login or tgops status first")
	}
	return account, nil
}

func peersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached peers of the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := currentAccount(cmd)
			if err != nil {
				return err
			}
			peers, err := env.store.ListPeers(cmd.Context(), account)
			if err != nil {
				return err
			}
			for _, p := range peers {
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s %-8s %-14d %s\n", p.Identifier, p.Kind, p.ID, p.ResolvedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func peersPurgeCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Forget cached peers so they are resolved again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var account int64
			if !all {
				var err error
				if account, err = currentAccount(cmd); err != nil {
					return err
				}
			}
			removed, err := env.store.PurgePeers(cmd.Context(), account)
			if err != nil {
				return err
			}
			if err := env.store.Checkpoint(cmd.Context()); err != nil {
				env.log.Debug("checkpoint failed", "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d peers\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "purge peers of every account")
	return cmd
}
