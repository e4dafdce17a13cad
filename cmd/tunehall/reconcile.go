package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tunehall/internal/catalog"
	"tunehall/internal/relations"
)

func newReconcileCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair relationship drift",
	}

	var all bool
	favoritesCmd := &cobra.Command{
		Use:   "favorites [relation]",
		Short: "Recompute favorite and follower counters from user sets",
		Long: fmt.Sprintf(`Recompute the counters of one favorite relation, or of every relation
with --all. Relations: %s.`, favoriteNames()),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rels := catalog.Favorites
			if !all {
				if len(args) != 1 {
					return fmt.Errorf("name a relation (%s) or pass --all", favoriteNames())
				}
				rel, err := catalog.FavoriteByName(args[0])
				if err != nil {
					return err
				}
				rels = []catalog.Favorite{rel}
			}

			cfg, logger, err := load()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			reports := make([]relations.Report, 0, len(rels))
			for _, rel := range rels {
				report, err := rt.reconciler.RecountFavorites(cmd.Context(), rel)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			}
			return printReports(cmd, reports)
		},
	}
	favoritesCmd.Flags().BoolVar(&all, "all", false, "Recount every favorite relation")

	var membership string
	tracksCmd := &cobra.Command{
		Use:   "tracks",
		Short: "Drop purged songs from playlist track lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := catalog.MembershipByName(membership)
			if err != nil {
				return err
			}

			cfg, logger, err := load()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			report, err := rt.reconciler.PruneDangling(cmd.Context(), rel)
			if err != nil {
				return err
			}
			return printReports(cmd, []relations.Report{report})
		},
	}

	tracksCmd.Flags().StringVar(&membership, "relation", catalog.PlaylistTracks.Name, "Membership relation to prune")

	cmd.AddCommand(favoritesCmd, tracksCmd)
	return cmd
}

func favoriteNames() string {
	names := ""
	for i, f := range catalog.Favorites {
		if i > 0 {
			names += ", "
		}
		names += f.Name
	}
	return names
}

func printReports(cmd *cobra.Command, reports []relations.Report) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
