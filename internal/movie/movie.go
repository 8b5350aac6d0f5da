// Package movie parses corpus rows into movie records for client-side
// reporting. Field positions come from a Layout, so the same code reads the
// short "title, year, genre" rows and full IMDB-style pipe rows.
package movie

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

// Movie is one parsed row. Year is zero when the row has none.
type Movie struct {
	ID      string
	Type    string
	Title   string
	IsAdult bool
	Year    int
	Runtime int
	Genres  []string
	Raw     string
}

// Layout maps record fields to column positions. A negative column means the
// field is absent. GenreSeparator splits a multi-valued genre column; empty
// means the column holds a single genre.
type Layout struct {
	Delimiter      string
	ID             int
	Type           int
	Title          int
	IsAdult        int
	Year           int
	Runtime        int
	Genres         int
	GenreSeparator string
}

// CSVLayout reads rows such as "The Matrix, 1999, SciFi".
var CSVLayout = Layout{
	Delimiter: ",",
	ID:        -1,
	Type:      -1,
	Title:     0,
	IsAdult:   -1,
	Year:      1,
	Runtime:   -1,
	Genres:    2,
}

// IMDBLayout reads rows such as
// "tt0133093|movie|The Matrix|0|1999|136|Action,Sci-Fi".
var IMDBLayout = Layout{
	Delimiter:      "|",
	ID:             0,
	Type:           1,
	Title:          2,
	IsAdult:        3,
	Year:           4,
	Runtime:        5,
	Genres:         6,
	GenreSeparator: ",",
}

// LayoutFor returns the preset named by a corpus format.
func LayoutFor(format string) (Layout, error) {
	switch format {
	case "csv", "":
		return CSVLayout, nil
	case "imdb":
		return IMDBLayout, nil
	default:
		return Layout{}, apperrors.Newf(apperrors.ErrInvalidInput, "movie", "unknown row format %q", format)
	}
}

// Parse splits row according to l. Missing trailing columns leave their
// fields empty; a row without a title column is rejected.
func (l Layout) Parse(row string) (Movie, error) {
	fields := strings.Split(row, l.Delimiter)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	col := func(i int) string {
		if i < 0 || i >= len(fields) {
			return ""
		}
		v := fields[i]
		if v == `\N` || v == "-" {
			return ""
		}
		return v
	}

	m := Movie{
		ID:    col(l.ID),
		Type:  col(l.Type),
		Title: col(l.Title),
		Raw:   row,
	}
	if m.Title == "" {
		return Movie{}, apperrors.Newf(apperrors.ErrInvalidInput, "movie", "row has no title: %q", row)
	}
	m.IsAdult = col(l.IsAdult) == "1"
	if v := col(l.Year); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return Movie{}, apperrors.Newf(apperrors.ErrInvalidInput, "movie", "bad year %q", v)
		}
		m.Year = year
	}
	if v := col(l.Runtime); v != "" {
		if runtime, err := strconv.Atoi(v); err == nil {
			m.Runtime = runtime
		}
	}
	if v := col(l.Genres); v != "" {
		if l.GenreSeparator == "" {
			m.Genres = []string{v}
		} else {
			for _, g := range strings.Split(v, l.GenreSeparator) {
				if g = strings.TrimSpace(g); g != "" {
					m.Genres = append(m.Genres, g)
				}
			}
		}
	}
	return m, nil
}

// Field returns the grouping keys for m under the named field. Movies with
// several genres appear under each of them.
func (m Movie) Field(name string) ([]string, error) {
	switch name {
	case "genre":
		if len(m.Genres) == 0 {
			return []string{"(none)"}, nil
		}
		return m.Genres, nil
	case "year":
		if m.Year == 0 {
			return []string{"(none)"}, nil
		}
		return []string{strconv.Itoa(m.Year)}, nil
	case "type":
		if m.Type == "" {
			return []string{"(none)"}, nil
		}
		return []string{m.Type}, nil
	default:
		return nil, fmt.Errorf("unknown group field %q: %w", name, apperrors.ErrInvalidInput)
	}
}
