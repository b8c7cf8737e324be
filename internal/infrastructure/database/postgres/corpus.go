package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/descriptors"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

// CorpusStore is a descriptors.CorpusRepository backed by the
// descriptor_corpus table.  One table holds every corpus; rows are
// discriminated by the corpus name ("sbu_descriptors", "linker_descriptors",
// "lc_descriptors") and ordered by insertion id, so Load replays appends in
// the order they happened.
//
// The name and value sequences of each row are stored as parallel JSONB
// arrays rather than as wide columns: descriptor layouts differ between
// corpora and evolve with the configured scope, and the store must not need
// a schema change when they do.
type CorpusStore struct {
	conn   *Connection
	corpus string
	logger logging.Logger
}

var _ descriptors.CorpusRepository = (*CorpusStore)(nil)

// NewCorpusStore returns a store scoped to one named corpus.
func NewCorpusStore(conn *Connection, corpus string, log logging.Logger) (*CorpusStore, error) {
	if corpus == "" {
		return nil, errors.New(errors.ErrCodeValidation, "corpus name is empty")
	}
	return &CorpusStore{
		conn:   conn,
		corpus: corpus,
		logger: log,
	}, nil
}

// Corpus returns the corpus name this store reads and writes.
func (s *CorpusStore) Corpus() string {
	return s.corpus
}

// Load returns every row of the corpus in append order.
func (s *CorpusStore) Load(ctx context.Context) ([]descriptors.Row, error) {
	const query = `
		SELECT structure, names, vals
		FROM descriptor_corpus
		WHERE corpus = $1
		ORDER BY id`

	rows, err := s.conn.db.QueryContext(ctx, query, s.corpus)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError,
			fmt.Sprintf("failed to load corpus %q", s.corpus))
	}
	defer rows.Close()

	var out []descriptors.Row
	for rows.Next() {
		row, err := scanCorpusRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError,
			fmt.Sprintf("failed to iterate corpus %q", s.corpus))
	}

	s.logger.Debug("Loaded descriptor corpus",
		logging.String("corpus", s.corpus),
		logging.Int("rows", len(out)),
	)
	return out, nil
}

// Append inserts one row at the end of the corpus.
func (s *CorpusStore) Append(ctx context.Context, row descriptors.Row) error {
	if row.Vec == nil {
		return errors.New(errors.ErrCodeValidation, "descriptor row has no vector")
	}

	namesJSON, err := json.Marshal(row.Vec.Names())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode descriptor names")
	}
	valsJSON, err := json.Marshal(row.Vec.Values())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode descriptor values")
	}

	const query = `
		INSERT INTO descriptor_corpus (corpus, structure, names, vals)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.conn.db.ExecContext(ctx, query, s.corpus, row.Name, namesJSON, valsJSON); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError,
			fmt.Sprintf("failed to append to corpus %q", s.corpus))
	}

	s.logger.Debug("Appended descriptor row",
		logging.String("corpus", s.corpus),
		logging.String("structure", row.Name),
		logging.Int("descriptor_len", row.Vec.Len()),
	)
	return nil
}

// scanCorpusRow decodes one result row back into a descriptor vector.
func scanCorpusRow(rows *sql.Rows) (descriptors.Row, error) {
	var (
		structure string
		namesJSON []byte
		valsJSON  []byte
	)
	if err := rows.Scan(&structure, &namesJSON, &valsJSON); err != nil {
		return descriptors.Row{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan corpus row")
	}

	var names []string
	if err := json.Unmarshal(namesJSON, &names); err != nil {
		return descriptors.Row{}, errors.Wrap(err, errors.ErrCodeSerialization,
			fmt.Sprintf("corrupt descriptor names for structure %q", structure))
	}
	var values []float64
	if err := json.Unmarshal(valsJSON, &values); err != nil {
		return descriptors.Row{}, errors.Wrap(err, errors.ErrCodeSerialization,
			fmt.Sprintf("corrupt descriptor values for structure %q", structure))
	}

	vec := descriptor.NewVector(len(names))
	if err := vec.Extend(names, values); err != nil {
		return descriptors.Row{}, errors.Wrap(err, errors.ErrCodeSerialization,
			fmt.Sprintf("inconsistent descriptor row for structure %q", structure))
	}
	return descriptors.Row{Name: structure, Vec: vec}, nil
}
