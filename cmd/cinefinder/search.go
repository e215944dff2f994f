package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/models"
	"github.com/glefebvre/cinefinder/internal/parser"
)

var searchCmd = &cobra.Command{
	Use:   "search [title...]",
	Short: "Search movies by title and director",
	Long: `Search the catalog for every title and director term and print the merged,
deduplicated, filtered and sorted result set.

Terms come from positional arguments, --director flags and an optional --file
(.txt with one term per line, or .csv with a term column). Without any term a
discovery query is run from the filters alone.`,
	Example: `  cinefinder search "Cidade de Deus" --director "Walter Salles"
  cinefinder search --file favoritos.txt --output json
  cinefinder search --genre 18 --year-start 2000 --year-end 2010 --sort vote_average.desc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		directors, _ := cmd.Flags().GetStringSlice("director")
		file, _ := cmd.Flags().GetString("file")
		output, _ := cmd.Flags().GetString("output")
		if err := checkOutput(output); err != nil {
			return err
		}

		filters := models.DefaultFilters()
		filters.GenreIDs, _ = cmd.Flags().GetIntSlice("genre")
		if cmd.Flags().Changed("year-start") {
			filters.YearStart, _ = cmd.Flags().GetInt("year-start")
		}
		if cmd.Flags().Changed("year-end") {
			filters.YearEnd, _ = cmd.Flags().GetInt("year-end")
		}
		if sortKey, _ := cmd.Flags().GetString("sort"); sortKey != "" {
			filters.SortKey = models.SortKey(sortKey)
		}
		if region, _ := cmd.Flags().GetString("region"); region != "" {
			filters.Region = region
		}

		movieTerms := append([]string{}, args...)
		if file != "" {
			p := parser.NewParserWithLogger(logger.AppLogger())
			terms, err := p.ParseFile(file)
			if err != nil {
				return err
			}
			movieTerms = append(movieTerms, terms.MovieTerms...)
			directors = append(directors, terms.DirectorTerms...)

			stats := p.GetStats()
			fmt.Fprintf(os.Stderr, "Parsed %s: %d terms, %d duplicates, %d malformed\n",
				file, stats.ParsedTerms, stats.SkippedDuplicates, stats.MalformedEntries)
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.search.SearchByTerms(cmd.Context(), movieTerms, directors, filters)
		if err != nil {
			return err
		}

		if output == outputJSON {
			return printJSON(cmd.OutOrStdout(), results)
		}
		if len(results.Movies) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No movies found.")
			return nil
		}
		if err := printMovies(cmd.OutOrStdout(), results.Movies); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d movies\n", results.TotalResults)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringSliceP("director", "d", nil, "director name (repeatable)")
	searchCmd.Flags().StringP("file", "f", "", "term list file (.txt or .csv)")
	searchCmd.Flags().IntSlice("genre", nil, "genre id filter (repeatable)")
	searchCmd.Flags().Int("year-start", 0, "earliest release year")
	searchCmd.Flags().Int("year-end", 0, "latest release year")
	searchCmd.Flags().String("sort", "", "sort key, e.g. popularity.desc or vote_average.desc")
	searchCmd.Flags().String("region", "", "two-letter watch region")
	searchCmd.Flags().StringP("output", "o", outputTable, "output format: table, json")
	rootCmd.AddCommand(searchCmd)
}
