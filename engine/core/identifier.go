package core

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Identifiers hands out small integer IDs, reusing released slots first.
type Identifiers struct {
	mu     sync.Mutex
	owners []interface{}
}

func NewIdentifiers() *Identifiers {
	return &Identifiers{
		owners: make([]interface{}, 0, 100),
	}
}

func (ids *Identifiers) Acquire(owner interface{}) uint32 {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	for i := range ids.owners {
		// Existing free spot. Take it.
		if ids.owners[i] == nil {
			ids.owners[i] = owner
			return uint32(i)
		}
	}

	ids.owners = append(ids.owners, owner)
	return uint32(len(ids.owners) - 1)
}

func (ids *Identifiers) Release(id uint32) error {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if int(id) >= len(ids.owners) {
		return errors.Newf("identifier %d out of range (max=%d), nothing was done", id, len(ids.owners))
	}
	// Just zero out the entry, making it available for use.
	ids.owners[id] = nil
	return nil
}

func (ids *Identifiers) Owner(id uint32) (interface{}, bool) {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if int(id) >= len(ids.owners) || ids.owners[id] == nil {
		return nil, false
	}
	return ids.owners[id], true
}
