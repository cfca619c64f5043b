package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/noise/internal/cli/formatter"
	"github.com/alexanderramin/noise/internal/repository"
	"github.com/spf13/cobra"
)

func newMemberCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"m"},
		Short:   "Inspect stored member records",
	}
	cmd.AddCommand(newMemberListCmd(g), newMemberShowCmd(g))
	return cmd
}

// openStore opens only the member store; inspection needs nothing else.
func (g *globalFlags) openStore() (repository.MemberRepo, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return repository.Open(cfg.Store.Backend, cfg.Store.Path)
}

func newMemberListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every member with points and settings",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := g.openStore()
			if err != nil {
				return err
			}
			defer members.Close()

			ctx := cmd.Context()
			ids, err := members.List(ctx)
			if err != nil {
				return err
			}
			snap, err := members.LoadSnapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatMemberList(ids, snap))
			return nil
		},
	}
}

func newMemberShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <member-id>",
		Short: "Show one member's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := g.openStore()
			if err != nil {
				return err
			}
			defer members.Close()

			rec, err := members.Get(cmd.Context(), args[0])
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("member %q has no data yet", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatMember(args[0], rec, time.Now().UTC()))
			return nil
		},
	}
}
