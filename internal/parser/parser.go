// Package parser reads uploaded term lists (.txt or .csv) into search terms.
package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/logger"
	"github.com/glefebvre/cinefinder/internal/normalizer"
)

// MaxTermLength bounds a single term; longer lines are treated as malformed
const MaxTermLength = 200

// TermList is the outcome of parsing a term file
type TermList struct {
	MovieTerms    []string `json:"movie_terms"`
	DirectorTerms []string `json:"director_terms"`
}

// Empty reports whether no term was found
func (t TermList) Empty() bool {
	return len(t.MovieTerms) == 0 && len(t.DirectorTerms) == 0
}

// ParseStats tracks parsing statistics
type ParseStats struct {
	TotalLines        int
	ParsedTerms       int
	SkippedDuplicates int
	MalformedEntries  int
	Duration          time.Duration
	ErrorsByType      map[string]int
}

// Format is a supported term file format
type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
)

// FormatFor picks the format from a file name
func FormatFor(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FormatText, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", apperrors.ValidationError("unsupported file type, expected .txt or .csv").
		WithContext("file", name)
}

// Parser turns term files into a TermList. One line (or CSV row) is one term.
// Lines starting with "#" are comments. A "director:" or "diretor:" prefix, or
// a CSV type column, marks a director term; everything else is a movie term.
type Parser struct {
	logger *logger.Logger
	seen   map[string]bool
	stats  ParseStats
}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return NewParserWithLogger(logger.AppLogger())
}

// NewParserWithLogger creates a new parser instance with a custom logger
func NewParserWithLogger(log *logger.Logger) *Parser {
	return &Parser{
		logger: log,
		seen:   make(map[string]bool),
		stats: ParseStats{
			ErrorsByType: make(map[string]int),
		},
	}
}

// ParseFile reads and parses the term file at path
func (p *Parser) ParseFile(path string) (TermList, error) {
	format, err := FormatFor(path)
	if err != nil {
		return TermList{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return TermList{}, apperrors.ParseError("failed to open term file", err)
	}
	defer file.Close()

	return p.Parse(file, format)
}

// Parse reads terms from r. An input without a single term is a parse error.
func (p *Parser) Parse(r io.Reader, format Format) (TermList, error) {
	start := time.Now()

	var (
		terms TermList
		err   error
	)
	switch format {
	case FormatText:
		err = p.parseText(r, &terms)
	case FormatCSV:
		err = p.parseCSV(r, &terms)
	default:
		return TermList{}, apperrors.ValidationError("unsupported term file format")
	}
	if err != nil {
		return TermList{}, err
	}

	p.stats.Duration = time.Since(start)
	p.logger.WithFields(map[string]interface{}{
		"format":           string(format),
		"total_lines":      p.stats.TotalLines,
		"movie_terms":      len(terms.MovieTerms),
		"director_terms":   len(terms.DirectorTerms),
		"duplicates":       p.stats.SkippedDuplicates,
		"malformed":        p.stats.MalformedEntries,
		"duration_seconds": p.stats.Duration.Seconds(),
	}).Info("term file parsed")

	if terms.Empty() {
		return TermList{}, apperrors.ParseError("no search terms found in file", nil)
	}
	return terms, nil
}

func (p *Parser) parseText(r io.Reader, terms *TermList) error {
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		p.stats.TotalLines++
		line := strings.TrimSpace(scanner.Text())
		if lineNumber == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		director := false
		if rest, ok := cutDirectorPrefix(line); ok {
			director, line = true, rest
		}
		p.add(terms, line, director, lineNumber)
	}

	if err := scanner.Err(); err != nil {
		return apperrors.ParseError("error reading term file", err)
	}
	return nil
}

func (p *Parser) parseCSV(r io.Reader, terms *TermList) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	termCol, typeCol := 0, -1
	lineNumber := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNumber++
		p.stats.TotalLines++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				p.malformed("invalid_csv", lineNumber)
				continue
			}
			return apperrors.ParseError("error reading term file", err)
		}
		if lineNumber == 1 && len(row) > 0 {
			row[0] = strings.TrimPrefix(row[0], "\uFEFF")
			if t, ty, ok := headerColumns(row); ok {
				termCol, typeCol = t, ty
				continue
			}
		}

		if termCol >= len(row) {
			p.malformed("missing_column", lineNumber)
			continue
		}
		term := strings.TrimSpace(row[termCol])
		director := false
		if typeCol >= 0 && typeCol < len(row) {
			director = isDirectorType(row[typeCol])
		} else if rest, ok := cutDirectorPrefix(term); ok {
			director, term = true, rest
		}
		p.add(terms, term, director, lineNumber)
	}
	return nil
}

func (p *Parser) add(terms *TermList, term string, director bool, lineNumber int) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	if len([]rune(term)) > MaxTermLength {
		p.malformed("term_too_long", lineNumber)
		return
	}

	kind := "movie"
	if director {
		kind = "director"
	}
	key := kind + ":" + normalizer.Normalize(term)
	if p.seen[key] {
		p.stats.SkippedDuplicates++
		return
	}
	p.seen[key] = true
	p.stats.ParsedTerms++

	if director {
		terms.DirectorTerms = append(terms.DirectorTerms, term)
	} else {
		terms.MovieTerms = append(terms.MovieTerms, term)
	}
}

func (p *Parser) malformed(kind string, lineNumber int) {
	p.stats.MalformedEntries++
	p.stats.ErrorsByType[kind]++
	p.logger.WithFields(map[string]interface{}{
		"line_number": lineNumber,
		"error":       kind,
	}).Warn("skipping malformed term entry")
}

// GetStats returns the current parsing statistics
func (p *Parser) GetStats() ParseStats {
	return p.stats
}

var (
	termHeaders = map[string]bool{"term": true, "termo": true, "title": true, "titulo": true, "name": true, "nome": true, "movie": true, "filme": true}
	typeHeaders = map[string]bool{"type": true, "tipo": true, "kind": true}
)

// headerColumns detects a header row and returns the term and type column
// indexes; the type column is -1 when absent
func headerColumns(row []string) (int, int, bool) {
	termCol, typeCol := -1, -1
	for i, cell := range row {
		name := normalizer.Normalize(cell)
		switch {
		case termHeaders[name] && termCol < 0:
			termCol = i
		case typeHeaders[name] && typeCol < 0:
			typeCol = i
		}
	}
	if termCol < 0 {
		return 0, -1, false
	}
	return termCol, typeCol, true
}

func isDirectorType(v string) bool {
	switch normalizer.Normalize(v) {
	case "director", "diretor", "diretora", "d":
		return true
	}
	return false
}

func cutDirectorPrefix(line string) (string, bool) {
	for _, prefix := range []string{"director:", "diretor:", "diretora:"} {
		if len(line) > len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return line, false
}
