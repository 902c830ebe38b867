package mappingtable

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/zsiec/gre2g/internal/errors"
)

// Format selects the on-disk table encoding.
type Format string

const (
	// FormatCBOR stores the table as two parallel string columns.
	FormatCBOR Format = "cbor"
	// FormatCSV stores a name,fs_id header followed by one row per entry.
	FormatCSV Format = "csv"
)

// Codec reads and writes whole tables.
type Codec interface {
	Ext() string
	Encode(w io.Writer, t *Table) error
	Decode(r io.Reader) (*Table, error)
}

// CodecFor returns the codec of a format.
func CodecFor(f Format) (Codec, error) {
	switch f {
	case FormatCBOR:
		return newCBORCodec()
	case FormatCSV:
		return csvCodec{}, nil
	}
	return nil, errors.NewValidationErrorf("unknown mapping table format: %q", f)
}

type columns struct {
	Name []string `json:"name"`
	FSID []string `json:"fs_id"`
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() (Codec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return cborCodec{enc: enc, dec: dec}, nil
}

func (cborCodec) Ext() string { return "cbor" }

func (c cborCodec) Encode(w io.Writer, t *Table) error {
	cols := columns{Name: make([]string, 0, t.Len()), FSID: make([]string, 0, t.Len())}
	for _, r := range t.rows {
		cols.Name = append(cols.Name, r.Name)
		cols.FSID = append(cols.FSID, r.FSID)
	}
	return c.enc.NewEncoder(w).Encode(cols)
}

func (c cborCodec) Decode(r io.Reader) (*Table, error) {
	var cols columns
	if err := c.dec.NewDecoder(r).Decode(&cols); err != nil {
		return nil, fmt.Errorf("decode cbor mapping table: %w", err)
	}
	if len(cols.Name) != len(cols.FSID) {
		return nil, fmt.Errorf("mapping table columns differ in length: %d names, %d ids", len(cols.Name), len(cols.FSID))
	}
	rows := make([]Row, len(cols.Name))
	for i := range cols.Name {
		rows[i] = Row{Name: cols.Name[i], FSID: cols.FSID[i]}
	}
	return FromRows(rows)
}

type csvCodec struct{}

func (csvCodec) Ext() string { return "csv" }

func (csvCodec) Encode(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnName, ColumnFSID}); err != nil {
		return err
	}
	for _, r := range t.rows {
		if err := cw.Write([]string{r.Name, r.FSID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (csvCodec) Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv mapping table header: %w", err)
	}
	if header[0] != ColumnName || header[1] != ColumnFSID {
		return nil, fmt.Errorf("unexpected csv mapping table header %v", header)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv mapping table: %w", err)
		}
		rows = append(rows, Row{Name: rec[0], FSID: rec[1]})
	}
	return FromRows(rows)
}
