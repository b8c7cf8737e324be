package descriptors

import (
	"context"

	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

// Row is one persisted per-substructure descriptor record, keyed by the
// structure it came from.
type Row struct {
	Name string
	Vec  *descriptor.Vector
}

// CorpusRepository is an append-only store of descriptor rows accumulating
// across runs over many structures.  Load returns every existing row; Append
// adds one and must never rewrite earlier rows.  Callers are responsible for
// serializing concurrent appends to a shared store.
type CorpusRepository interface {
	Load(ctx context.Context) ([]Row, error)
	Append(ctx context.Context, row Row) error
}
