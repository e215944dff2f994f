package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/glefebvre/cinefinder/internal/models"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func checkOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output %q (use table or json)", format)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printMovies writes one row per movie
func printMovies(w io.Writer, movies []models.EnrichedMovie) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tYEAR\tRATING\tDIRECTOR\tGENRES\tSTREAMING")
	for _, m := range movies {
		year := "-"
		if y, ok := m.ReleaseYear(); ok {
			year = fmt.Sprintf("%d", y)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\t%s\t%s\n",
			m.ID, truncate(m.Title, 40), year, m.VoteAverage,
			truncate(m.Director, 25), genreNames(m.Genres), truncate(m.StreamingServices, 40))
	}
	return tw.Flush()
}

// printDetails writes one movie as a key/value block
func printDetails(w io.Writer, m *models.EnrichedMovie, posterURL string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Title:\t%s\n", m.Title)
	if m.OriginalTitle != "" && m.OriginalTitle != m.Title {
		fmt.Fprintf(tw, "Original title:\t%s\n", m.OriginalTitle)
	}
	fmt.Fprintf(tw, "Release:\t%s\n", orDash(m.ReleaseDate))
	fmt.Fprintf(tw, "Rating:\t%.1f (%d votes)\n", m.VoteAverage, m.VoteCount)
	if m.Runtime > 0 {
		fmt.Fprintf(tw, "Runtime:\t%d min\n", m.Runtime)
	}
	fmt.Fprintf(tw, "Genres:\t%s\n", genreNames(m.Genres))
	fmt.Fprintf(tw, "Director:\t%s\n", m.Director)
	fmt.Fprintf(tw, "Cast:\t%s\n", m.Cast)
	fmt.Fprintf(tw, "Streaming:\t%s\n", m.StreamingServices)
	fmt.Fprintf(tw, "Poster:\t%s\n", posterURL)
	if err := tw.Flush(); err != nil {
		return err
	}
	if m.Overview != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", m.Overview)
		return err
	}
	return nil
}

func genreNames(genres []models.Genre) string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		if g.Name == "" {
			names = append(names, fmt.Sprintf("#%d", g.ID))
			continue
		}
		names = append(names, g.Name)
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
