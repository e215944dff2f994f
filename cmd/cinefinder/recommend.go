package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glefebvre/cinefinder/internal/models"
	"github.com/glefebvre/cinefinder/internal/recommend"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend movies from a viewing history",
	Long: `Recommend up to recommend.max_results movies under one or more lenses
(smart, quality, trending).

History comes from --history movie ids, from the saved list with --saved, or
both. With several --lens values the lenses share one session, so a movie shown
under one lens is not repeated under the next.`,
	Example: `  cinefinder recommend --history 598,11216 --lens smart
  cinefinder recommend --saved --lens smart --lens quality --lens trending`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetIntSlice("history")
		useSaved, _ := cmd.Flags().GetBool("saved")
		lensNames, _ := cmd.Flags().GetStringSlice("lens")
		output, _ := cmd.Flags().GetString("output")
		if err := checkOutput(output); err != nil {
			return err
		}

		lenses := make([]models.Lens, 0, len(lensNames))
		for _, name := range lensNames {
			lens, err := models.ParseLens(name)
			if err != nil {
				return err
			}
			lenses = append(lenses, lens)
		}
		if len(lenses) == 0 {
			lenses = []models.Lens{models.LensSmart}
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, useSaved)
		if err != nil {
			return err
		}
		defer a.Close()

		var history []models.EnrichedMovie
		if useSaved {
			history, err = a.saved.History(ctx)
			if err != nil {
				return err
			}
		}
		if len(ids) > 0 {
			history = append(history, a.enricher.Hydrate(ctx, ids, a.cfg.Search.MaxConcurrency)...)
		}

		session := recommend.NewSession(a.engine)
		results := make(map[models.Lens][]models.EnrichedMovie, len(lenses))
		for _, lens := range lenses {
			recs, err := session.Recommend(ctx, history, lens)
			if err != nil {
				return err
			}
			results[lens] = recs
		}

		if output == outputJSON {
			return printJSON(cmd.OutOrStdout(), results)
		}
		for i, lens := range lenses {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", lens)
			if len(results[lens]) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recommendations.")
				continue
			}
			if err := printMovies(cmd.OutOrStdout(), results[lens]); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().IntSlice("history", nil, "watched movie ids")
	recommendCmd.Flags().Bool("saved", false, "use the saved list as history")
	recommendCmd.Flags().StringSliceP("lens", "l", nil, "lens: smart, quality, trending (repeatable)")
	recommendCmd.Flags().StringP("output", "o", outputTable, "output format: table, json")
	rootCmd.AddCommand(recommendCmd)
}
