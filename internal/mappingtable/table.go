// Package mappingtable holds the per-level table translating human names
// to file-system ids, and the codecs that persist it.
package mappingtable

import (
	"github.com/zsiec/gre2g/internal/errors"
)

// Column names of the persisted table.
const (
	ColumnName = "name"
	ColumnFSID = "fs_id"
)

// Row maps one human-facing name to its file-system id.
type Row struct {
	Name string
	FSID string
}

// Table is an ordered set of rows with unique names and unique ids.
type Table struct {
	rows   []Row
	byName map[string]int
	byID   map[string]int
}

// New returns an empty table.
func New() *Table {
	return &Table{byName: map[string]int{}, byID: map[string]int{}}
}

// FromRows builds a table, rejecting duplicate names or ids.
func FromRows(rows []Row) (*Table, error) {
	t := New()
	for _, r := range rows {
		if err := t.Add(r.Name, r.FSID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the rows in insertion order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Names returns the names in insertion order.
func (t *Table) Names() []string {
	names := make([]string, len(t.rows))
	for i, r := range t.rows {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the id registered for name.
func (t *Table) Lookup(name string) (string, bool) {
	i, ok := t.byName[name]
	if !ok {
		return "", false
	}
	return t.rows[i].FSID, true
}

// HasID reports whether an id is already taken.
func (t *Table) HasID(fsID string) bool {
	_, ok := t.byID[fsID]
	return ok
}

// Add registers a row. Names and ids must both be unused.
func (t *Table) Add(name, fsID string) error {
	if name == "" || fsID == "" {
		return errors.NewValidationError("mapping table rows need a name and an fs_id")
	}
	if _, ok := t.byName[name]; ok {
		return errors.NewAlreadyExistsError("name " + name)
	}
	if _, ok := t.byID[fsID]; ok {
		return errors.NewAlreadyExistsError("fs_id " + fsID)
	}
	t.rows = append(t.rows, Row{Name: name, FSID: fsID})
	t.byName[name] = len(t.rows) - 1
	t.byID[fsID] = len(t.rows) - 1
	return nil
}

// Remove deletes the row for name and returns its id.
func (t *Table) Remove(name string) (string, bool) {
	i, ok := t.byName[name]
	if !ok {
		return "", false
	}
	row := t.rows[i]
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	t.reindex()
	return row.FSID, true
}

func (t *Table) reindex() {
	t.byName = make(map[string]int, len(t.rows))
	t.byID = make(map[string]int, len(t.rows))
	for i, r := range t.rows {
		t.byName[r.Name] = i
		t.byID[r.FSID] = i
	}
}
