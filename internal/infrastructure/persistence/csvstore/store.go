// Package csvstore implements the descriptor corpus repository over
// append-only comma-separated files.  Repeated runs accumulate rows; the
// store never rewrites existing content.
package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/descriptors"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

// Store is a descriptors.CorpusRepository backed by one CSV file.  The first
// column is the structure name; the remaining columns are descriptor names,
// fixed by the first row ever appended.
type Store struct {
	path string
}

var _ descriptors.CorpusRepository = (*Store)(nil)

// NewStore builds a Store at path, creating parent directories as needed.
// The file itself is created lazily on first append.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot create corpus directory")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Load reads every existing row.  A missing file is an empty corpus, not an
// error.
func (s *Store) Load(_ context.Context) ([]descriptors.Row, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot open corpus file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot read corpus header")
	}
	if len(header) < 2 || header[0] != "name" {
		return nil, errors.New(errors.ErrCodeStorageError, "malformed corpus header").
			WithDetail("path=" + s.path)
	}

	var rows []descriptors.Row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot read corpus row")
		}
		vec := descriptor.NewVector(len(header) - 1)
		for i := 1; i < len(header); i++ {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeStorageError, "non-numeric corpus value").
					WithDetail(fmt.Sprintf("column=%s value=%q", header[i], record[i]))
			}
			if err := vec.Append(header[i], v); err != nil {
				return nil, err
			}
		}
		rows = append(rows, descriptors.Row{Name: record[0], Vec: vec})
	}
	return rows, nil
}

// Append writes one row, emitting the header first when the file is new.
// The row's descriptor names must match the established header exactly.
func (s *Store) Append(_ context.Context, row descriptors.Row) error {
	header, err := s.readHeader()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot open corpus file for append")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	names := row.Vec.Names()
	if header == nil {
		if err := w.Write(append([]string{"name"}, names...)); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "cannot write corpus header")
		}
	} else if !sameNames(header[1:], names) {
		return errors.New(errors.ErrCodeNameMismatch, "row names do not match corpus header").
			WithDetail("path=" + s.path)
	}

	record := make([]string, 0, len(names)+1)
	record = append(record, row.Name)
	for _, v := range row.Vec.Values() {
		record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
	}
	if err := w.Write(record); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot write corpus row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "cannot flush corpus row")
	}
	return nil
}

// readHeader returns the existing header, or nil when the file does not yet
// exist or is empty.
func (s *Store) readHeader() ([]string, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot open corpus file")
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "cannot read corpus header")
	}
	return header, nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
