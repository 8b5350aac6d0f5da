package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PippiShao/IMDB/internal/client"
	"github.com/PippiShao/IMDB/internal/movie"
	"github.com/PippiShao/IMDB/internal/report"
)

type querier interface {
	Query(ctx context.Context, query string) ([]string, error)
}

type prompt struct {
	querier querier
	layout  movie.Layout
	groupBy string
	in      io.Reader
	out     io.Writer
}

// run reads queries until q, end of input or cancellation. A failed query
// ends the session with its error.
func (p *prompt) run(ctx context.Context) error {
	scanner := bufio.NewScanner(p.in)
	for {
		fmt.Fprint(p.out, "query (q to quit)> ")
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "q":
			return nil
		case len(line) > client.MaxQueryLength:
			fmt.Fprintf(p.out, "query too long: %d characters, at most %d\n", len(line), client.MaxQueryLength)
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		records, err := p.querier.Query(ctx, line)
		if err != nil {
			return fmt.Errorf("query %q: %w", line, err)
		}
		fmt.Fprintf(p.out, "found %d movies.\n", len(records))
		if len(records) == 0 {
			continue
		}
		r, err := report.Build(records, p.layout, p.groupBy)
		if err != nil {
			return err
		}
		if err := r.Render(p.out); err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
	}
}
