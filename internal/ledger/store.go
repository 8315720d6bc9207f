package ledger

// Store defines the interface for ledger persistence backends.
type Store interface {
	// Initialize creates tables and indexes.
	Initialize() error

	// Close cleanly shuts down the store.
	Close() error

	Append(e *Entry) error
	Get(id string) (*Entry, error)
	Latest() (*Entry, error)

	// List returns entries newest first along with the total count.
	List(filter Filter) ([]*Entry, int, error)

	// Chain returns every entry oldest first.
	Chain() ([]*Entry, error)
}
