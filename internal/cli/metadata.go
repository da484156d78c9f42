package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhythmerc/gentro-library/services/games/metadata"
	"github.com/rhythmerc/gentro-library/services/games/models"
)

// watchPipeline prints pipeline signals while a fetch runs and reports
// whether an error signal was seen
func (a *app) watchPipeline() *bool {
	failed := new(bool)
	ev := a.svc.Events()
	ev.OnProgress(func(current, total int) {
		fmt.Fprintf(a.out, "  %d/%d games\n", current, total)
	})
	ev.OnError(func(message string) {
		if message == metadata.IncompleteMessage {
			a.warn("%s", message)
			return
		}
		*failed = true
		a.fail("%s", message)
	})
	ev.OnFinished(func(games []models.Game) {
		fetched := 0
		for _, g := range games {
			if g.MetadataFetched {
				fetched++
			}
		}
		a.ok("Metadata up to date for %d of %d games", fetched, len(games))
	})
	return failed
}

func (a *app) newFetchOwnedCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "fetch-owned",
		Short:       "Import every game on your Steam account",
		Args:        cobra.NoArgs,
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.header("Importing owned games")
			failed := a.watchPipeline()

			added, err := a.svc.FetchOwnedGames(cmd.Context())
			if err != nil {
				return err
			}
			if len(added) == 0 {
				a.ok("Library already has every owned game")
				return nil
			}
			a.ok("Added %d games", len(added))
			if *failed {
				return fmt.Errorf("metadata fetch did not complete")
			}
			return nil
		},
	}
}

func (a *app) newFetchMetadataCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "fetch-metadata",
		Short:       "Refresh playtime and fetch store metadata for games that lack it",
		Args:        cobra.NoArgs,
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.header("Fetching metadata")
			failed := a.watchPipeline()

			if _, err := a.svc.FetchMetadata(cmd.Context(), force); err != nil {
				return err
			}
			if *failed {
				return fmt.Errorf("metadata fetch did not complete")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Refetch games that already have metadata")
	return cmd
}

func (a *app) newUpdatePlaytimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "update-playtime",
		Short:       "Copy playtime from your Steam account",
		Args:        cobra.NoArgs,
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.svc.RefreshPlaytime(cmd.Context())
			if err != nil {
				return err
			}
			a.ok("Updated playtime for %d games", n)
			return nil
		},
	}
}

func (a *app) newResetMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "reset-metadata",
		Short:       "Mark every game as needing a metadata fetch, keeping stored values",
		Args:        cobra.NoArgs,
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.svc.ResetMetadata()
			if err != nil {
				return err
			}
			a.ok("Reset %d games", n)
			return nil
		},
	}
}

func (a *app) newClearMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "clear-metadata",
		Short:       "Erase all fetched metadata; playtime is kept",
		Args:        cobra.NoArgs,
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.ClearMetadata(); err != nil {
				return err
			}
			a.ok("Cleared metadata")
			return nil
		},
	}
}

func (a *app) newPostersCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "posters",
		Short:       "Download and cache poster art",
		Args:        cobra.NoArgs,
		Annotations: mutates,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.svc.CachePosters(cmd.Context())
			if err != nil {
				return err
			}
			a.ok("Cached %d posters", n)
			return nil
		},
	}
}
