package mappingtable

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// FileName returns the table file name inside a level directory.
func FileName(c Codec) string {
	return "mapping_table." + c.Ext()
}

// Load reads the table stored in dir.
func Load(dir string, c Codec) (*Table, error) {
	f, err := os.Open(filepath.Join(dir, FileName(c)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := c.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return t, nil
}

// Save replaces the table stored in dir. The new content is written to a
// temporary file first and renamed over the old one.
func Save(dir string, c Codec, t *Table) error {
	tmp, err := os.CreateTemp(dir, ".mapping_table-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := c.Encode(w, t); err != nil {
		tmp.Close()
		return fmt.Errorf("encode mapping table: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, FileName(c)))
}
