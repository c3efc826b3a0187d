// Package txstore stores the persisted records of coordinator transactions.
// A record is saved after every applied transition, so a coordinator can
// crash, reload the records and derive the outstanding protocol work from
// each restored transaction without replaying history.
package txstore

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/umbralabs/twophase/internal/twopc"
)

// Record is the durable unit for one coordinator transaction: the opaque
// routing handles plus the state machine snapshot.
type Record struct {
	ID        uuid.UUID              `json:"id"`
	Client    string                 `json:"client"`
	Snapshot  twopc.Snapshot[string] `json:"snapshot"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Terminal reports whether the recorded transaction reached a terminal
// phase.
func (r Record) Terminal() bool {
	return r.Snapshot.Phase.Terminal()
}

// Store persists transaction records keyed by transaction ID.
type Store interface {
	// Save writes or replaces the record for its transaction ID.
	Save(rec Record) error

	// Load returns the record for the given ID, and whether it exists.
	Load(id uuid.UUID) (Record, bool, error)

	// LoadAll returns every stored record. Used for crash recovery.
	LoadAll() ([]Record, error)

	// Delete removes the record for the given ID. Deleting an absent
	// record is not an error.
	Delete(id uuid.UUID) error
}
