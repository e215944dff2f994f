package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	apperrors "github.com/glefebvre/cinefinder/internal/errors"
)

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List catalog genres",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := checkOutput(output); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		genres, err := a.enricher.Genres().All(cmd.Context())
		if err != nil {
			return err
		}
		if output == outputJSON {
			return printJSON(cmd.OutOrStdout(), genres)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME")
		for _, g := range genres {
			fmt.Fprintf(tw, "%d\t%s\n", g.ID, g.Name)
		}
		return tw.Flush()
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details <movie-id>",
	Short: "Show full details of one movie",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := checkOutput(output); err != nil {
			return err
		}
		id, err := parseMovieID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		movie, err := a.enricher.Enrich(cmd.Context(), id)
		if err != nil {
			return err
		}
		if output == outputJSON {
			return printJSON(cmd.OutOrStdout(), movie)
		}
		return printDetails(cmd.OutOrStdout(), movie, a.catalog.ImageURL(movie.PosterPath, "w500"))
	},
}

func parseMovieID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError(fmt.Sprintf("invalid movie id %q", s))
	}
	return id, nil
}

func init() {
	genresCmd.Flags().StringP("output", "o", outputTable, "output format: table, json")
	detailsCmd.Flags().StringP("output", "o", outputTable, "output format: table, json")
	rootCmd.AddCommand(genresCmd, detailsCmd)
}
