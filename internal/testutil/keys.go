package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SequentialKeys generates predictable UUIDs for tests.
//
// Keys are 00000000-0000-4000-8000-<counter>, so golden output and
// assertions do not depend on random generation.
type SequentialKeys struct {
	mu  sync.Mutex
	seq uint64
}

// NewSequentialKeys creates a generator whose first key ends in ...0001.
func NewSequentialKeys() *SequentialKeys {
	return &SequentialKeys{}
}

// NewKey returns the next key.
func (g *SequentialKeys) NewKey() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	var u uuid.UUID
	u[6] = 0x40
	u[8] = 0x80
	binary.BigEndian.PutUint64(u[8:], g.seq|0x8000000000000000)
	return u
}

// NewVersionKey returns the next key. Version keys share the counter.
func (g *SequentialKeys) NewVersionKey() uuid.UUID {
	return g.NewKey()
}
