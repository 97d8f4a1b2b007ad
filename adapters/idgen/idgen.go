// Package idgen generates delivery identifiers for the signal journal.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/crossbridge/ports"
)

// DeliveryPrefix marks signal delivery IDs.
const DeliveryPrefix = "dlv_"

// UUID generates prefixed, time-ordered UUIDs (version 7) so journal rows
// sort by delivery order when sorted by ID.
type UUID struct {
	Prefix string
}

// New returns a new identifier. It falls back to a random v4 UUID if the
// v7 generator fails.
func (g UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return g.Prefix + id.String()
}

var _ ports.IDGenerator = UUID{}

// Sequential yields prefix1, prefix2, ... and is meant for tests.
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Reset restarts the sequence.
func (s *Sequential) Reset() {
	s.counter.Store(0)
}

var _ ports.IDGenerator = (*Sequential)(nil)
