// Package idtable provides a fixed-capacity membership bitset over OSM ids.
//
// At planet scale the builder needs two O(1) membership tests across every
// node id seen in any way: one bit per id keeps both tables under 1GB.
package idtable

import (
	"fmt"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// MaxOSMNodeID is the default upper bound for node ids. Set past the
// current planet maximum; raise when OSM grows into it.
const MaxOSMNodeID = 4_000_000_000

// IdTable is a bitset keyed by OSM id. It never resizes: the bound is
// fixed at construction.
type IdTable struct {
	maxID uint64
	words []uint64
}

// New creates a table able to hold ids in [0, maxID].
func New(maxID uint64) *IdTable {
	return &IdTable{
		maxID: maxID,
		words: make([]uint64, maxID/64+1),
	}
}

// Set marks an id. Ids beyond the declared maximum fail rather than grow
// the table.
func (t *IdTable) Set(id uint64) error {
	if id > t.maxID {
		return fmt.Errorf("%w: %d > %d", graph.ErrIdOutOfRange, id, t.maxID)
	}
	t.words[id/64] |= 1 << (id % 64)
	return nil
}

// IsSet reports whether an id has been marked. Ids beyond the maximum are
// never set.
func (t *IdTable) IsSet(id uint64) bool {
	if id > t.maxID {
		return false
	}
	return t.words[id/64]&(1<<(id%64)) != 0
}
