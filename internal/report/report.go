// Package report groups the records a query returned and renders them as
// tables, one per group.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/PippiShao/IMDB/internal/movie"
)

type Group struct {
	Key    string
	Movies []movie.Movie
}

// Report holds parsed records grouped by one field. Rows the layout cannot
// parse are kept verbatim in Unparsed.
type Report struct {
	Field    string
	Total    int
	Groups   []Group
	Unparsed []string
}

// Build parses records with layout and groups them by field ("genre",
// "year" or "type"). Groups are sorted by key and titles within a group.
func Build(records []string, layout movie.Layout, field string) (*Report, error) {
	if _, err := (movie.Movie{}).Field(field); err != nil {
		return nil, err
	}
	r := &Report{Field: field, Total: len(records)}
	byKey := make(map[string][]movie.Movie)
	for _, rec := range records {
		m, err := layout.Parse(rec)
		if err != nil {
			r.Unparsed = append(r.Unparsed, rec)
			continue
		}
		keys, _ := m.Field(field)
		for _, k := range keys {
			byKey[k] = append(byKey[k], m)
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		movies := byKey[k]
		sort.SliceStable(movies, func(i, j int) bool {
			if movies[i].Title != movies[j].Title {
				return movies[i].Title < movies[j].Title
			}
			return movies[i].Year < movies[j].Year
		})
		r.Groups = append(r.Groups, Group{Key: k, Movies: movies})
	}
	return r, nil
}

// Render writes every group as a titled table, then any unparsed rows.
func (r *Report) Render(w io.Writer) error {
	for _, g := range r.Groups {
		if _, err := fmt.Fprintf(w, "\n%s: %s (%d)\n", r.Field, g.Key, len(g.Movies)); err != nil {
			return err
		}
		rows := make([][]string, 0, len(g.Movies))
		for _, m := range g.Movies {
			rows = append(rows, []string{m.Title, yearString(m.Year), strings.Join(m.Genres, ", "), m.Type})
		}
		if err := renderTable(w, []string{"Title", "Year", "Genres", "Type"}, rows); err != nil {
			return fmt.Errorf("rendering group %q: %w", g.Key, err)
		}
	}
	if len(r.Unparsed) > 0 {
		if _, err := fmt.Fprintf(w, "\nunparsed rows (%d)\n", len(r.Unparsed)); err != nil {
			return err
		}
		rows := make([][]string, 0, len(r.Unparsed))
		for _, raw := range r.Unparsed {
			rows = append(rows, []string{raw})
		}
		if err := renderTable(w, []string{"Record"}, rows); err != nil {
			return fmt.Errorf("rendering unparsed rows: %w", err)
		}
	}
	return nil
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
	)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func yearString(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}
