package crud

import "github.com/conduit-lang/recordkit/internal/changefeed"

// Operation represents a storage operation on a record
type Operation int

const (
	// OperationLoad reads the committed core from the store
	OperationLoad Operation = iota
	// OperationImport reads values into the changeset from another store
	OperationImport
	// OperationCreate writes a new record with REPLACE
	OperationCreate
	// OperationUpdate writes the changeset with UPDATE
	OperationUpdate
	// OperationRemove deletes the record
	OperationRemove
	// OperationSearch selects records matching an example
	OperationSearch
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OperationLoad:
		return "load"
	case OperationImport:
		return "import"
	case OperationCreate:
		return "create"
	case OperationUpdate:
		return "update"
	case OperationRemove:
		return "remove"
	case OperationSearch:
		return "search"
	default:
		return "unknown"
	}
}

// feed maps a write operation to the change event it publishes
func (o Operation) feed() changefeed.Operation {
	switch o {
	case OperationCreate:
		return changefeed.OperationCreate
	case OperationRemove:
		return changefeed.OperationRemove
	default:
		return changefeed.OperationSave
	}
}

// State is where a record is in its lifecycle
type State int

const (
	// StateFresh is a constructed record that has not been loaded
	StateFresh State = iota
	// StateLoaded is a record whose core came from the store
	StateLoaded
	// StateDirty is a record with pending changes
	StateDirty
	// StateSaved is a record whose changes were written
	StateSaved
	// StateRemoved is a deleted record; it accepts no further operations
	StateRemoved
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateSaved:
		return "saved"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
