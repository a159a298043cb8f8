package store

import "context"

// Catalog is the read-only view of the external product catalog the sweeper
// consults: a session whose subject no longer exists there is marked
// obsolete. Catalog records themselves are owned by another service — this
// module never writes them.
type Catalog interface {
	SubjectExists(ctx context.Context, subjectID string) (bool, error)
	Ping(ctx context.Context) error
	Close()
}
