// Package transmission tracks the uploads a session has in flight.
//
// A Table belongs to exactly one session and is driven from that
// session's read loop only, so it carries no locks.  Every handle it
// holds is closed by Finish or CloseAll; none outlives the session.
package transmission

import (
	"errors"
	"fmt"
	"io"

	ncerr "nnfp/internal/errors"
)

// FirstID is the first id a Counter hands out.
const FirstID int32 = 1

// Counter assigns monotonically increasing transmission ids.
type Counter struct {
	next int32
}

// NewCounter returns a Counter starting at FirstID.
func NewCounter() *Counter {
	return &Counter{next: FirstID}
}

// Next returns the current id and advances.
func (c *Counter) Next() int32 {
	id := c.next
	c.next++
	return id
}

// Upload is one open client → server transmission.
type Upload struct {
	ID      int32
	Path    string
	Written int64
	w       io.WriteCloser
}

// Table maps transmission ids to open write handles.
type Table struct {
	ids  *Counter
	open map[int32]*Upload
}

// NewTable returns an empty table with its own id counter.
func NewTable() *Table {
	return &Table{ids: NewCounter(), open: make(map[int32]*Upload)}
}

// Open assigns the next id to w and registers it.
func (t *Table) Open(w io.WriteCloser, path string) int32 {
	id := t.ids.Next()
	t.open[id] = &Upload{ID: id, Path: path, w: w}
	return id
}

// Len reports the number of uploads in flight.
func (t *Table) Len() int { return len(t.open) }

// Lookup returns the upload registered under id.
func (t *Table) Lookup(id int32) (*Upload, bool) {
	u, ok := t.open[id]
	return u, ok
}

// Append writes chunk to the handle registered under id.
func (t *Table) Append(id int32, chunk []byte) error {
	u, ok := t.open[id]
	if !ok {
		return fmt.Errorf("%w: %d", ncerr.ErrUnknownTransmission, id)
	}
	n, err := u.w.Write(chunk)
	u.Written += int64(n)
	if err != nil {
		return fmt.Errorf("transmission %d: write %s: %w", id, u.Path, err)
	}
	return nil
}

// Finish closes and removes the handle registered under id.
func (t *Table) Finish(id int32) (Upload, error) {
	u, ok := t.open[id]
	if !ok {
		return Upload{}, fmt.Errorf("%w: %d", ncerr.ErrUnknownTransmission, id)
	}
	delete(t.open, id)
	if err := u.w.Close(); err != nil {
		return *u, fmt.Errorf("transmission %d: close %s: %w", id, u.Path, err)
	}
	return *u, nil
}

// CloseAll releases every open handle and empties the table.  Partially
// written files stay on disk.
func (t *Table) CloseAll() error {
	var errs []error
	for id, u := range t.open {
		if err := u.w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transmission %d: close %s: %w", id, u.Path, err))
		}
		delete(t.open, id)
	}
	return errors.Join(errs...)
}
