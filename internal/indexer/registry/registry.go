// Package registry maps dense document ids to the corpus row each one names.
// Ids are assigned sequentially from zero during the startup crawl; after
// that the registry is read-only and safe for concurrent Resolve calls.
package registry

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/PippiShao/IMDB/internal/hashtable"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

// DocID identifies one corpus row.
type DocID uint32

// Location is where a document's row lives. Offset is the byte offset of the
// row's first byte, or -1 when only the row number is known.
type Location struct {
	Path   string
	Row    int
	Offset int64
}

type Registry struct {
	docs *hashtable.Table[DocID, Location]
	next DocID
}

func New() *Registry {
	return &Registry{
		docs: hashtable.New[DocID, Location](1024),
	}
}

// Register assigns the next id to row (zero-based line number) of path.
func (r *Registry) Register(path string, row int) DocID {
	return r.RegisterAt(path, row, -1)
}

// RegisterAt is Register with a known byte offset, letting Resolve seek
// instead of skipping rows.
func (r *Registry) RegisterAt(path string, row int, offset int64) DocID {
	id := r.next
	r.docs.Put(id, Location{Path: path, Row: row, Offset: offset})
	r.next++
	return id
}

// Count returns how many documents are registered.
func (r *Registry) Count() int {
	return r.docs.Count()
}

// Lookup returns the location registered under id.
func (r *Registry) Lookup(id DocID) (Location, error) {
	loc, ok := r.docs.Get(id)
	if !ok {
		return Location{}, apperrors.Newf(apperrors.ErrDocumentNotFound, "resolve", "document id %d", id)
	}
	return loc, nil
}

// Range visits every document in id order.
func (r *Registry) Range(fn func(id DocID, loc Location) bool) {
	r.docs.Range(fn)
}

// Resolve re-reads the row for id from disk and returns it without its line
// terminator.
func (r *Registry) Resolve(id DocID) (string, error) {
	loc, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	f, err := os.Open(loc.Path)
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrIO, "resolve", "opening %s: %v", loc.Path, err)
	}
	defer f.Close()

	rd := bufio.NewReader(f)
	if loc.Offset >= 0 {
		if _, err := f.Seek(loc.Offset, io.SeekStart); err != nil {
			return "", apperrors.Newf(apperrors.ErrIO, "resolve", "seeking %s to %d: %v", loc.Path, loc.Offset, err)
		}
		rd.Reset(f)
	} else {
		for i := 0; i < loc.Row; i++ {
			if _, err := rd.ReadString('\n'); err != nil {
				return "", rowError(loc, err)
			}
		}
	}
	line, err := rd.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", rowError(loc, err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func rowError(loc Location, err error) error {
	if errors.Is(err, io.EOF) {
		return apperrors.Newf(apperrors.ErrIO, "resolve", "row %d is past the end of %s", loc.Row, loc.Path)
	}
	return apperrors.Newf(apperrors.ErrIO, "resolve", "reading %s: %v", loc.Path, err)
}
