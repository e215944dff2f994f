package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glefebvre/cinefinder/internal/models"
)

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "Manage the saved movie list",
}

var savedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved movies in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := checkOutput(output); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		saved, err := a.saved.List(cmd.Context())
		if err != nil {
			return err
		}
		if output == outputJSON {
			if saved == nil {
				saved = []models.SavedMovie{}
			}
			return printJSON(cmd.OutOrStdout(), saved)
		}
		if len(saved) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "The saved list is empty.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tTITLE\tRELEASE\tDIRECTOR\tSAVED")
		for _, m := range saved {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
				m.Position, m.MovieID, truncate(m.Title, 40), orDash(m.ReleaseDate),
				truncate(m.Director, 25), m.SavedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var savedAddCmd = &cobra.Command{
	Use:   "add <movie-id>...",
	Short: "Save movies at the end of the list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseMovieIDs(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, id := range ids {
			m, err := a.saved.Add(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %q (%d) at position %d\n", m.Title, m.MovieID, m.Position)
		}
		return nil
	},
}

var savedRemoveCmd = &cobra.Command{
	Use:   "remove <movie-id>...",
	Short: "Remove movies from the list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseMovieIDs(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, id := range ids {
			if err := a.saved.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d\n", id)
		}
		return nil
	},
}

var savedOrderCmd = &cobra.Command{
	Use:   "order <movie-id>...",
	Short: "Reorder the list; every saved id must appear exactly once",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseMovieIDs(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.saved.Reorder(cmd.Context(), ids); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d movies\n", len(ids))
		return nil
	},
}

func parseMovieIDs(args []string) ([]int, error) {
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := parseMovieID(arg)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func init() {
	savedListCmd.Flags().StringP("output", "o", outputTable, "output format: table, json")
	savedCmd.AddCommand(savedListCmd, savedAddCmd, savedRemoveCmd, savedOrderCmd)
	rootCmd.AddCommand(savedCmd)
}
