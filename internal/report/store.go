package report

import "context"

// Store is the persistence interface for the two report collections. It is
// load-all/replace-all by contract; an absent collection loads as empty.
type Store interface {
	LoadActive(ctx context.Context) ([]Report, error)
	LoadArchived(ctx context.Context) ([]Report, error)
	ReplaceActive(ctx context.Context, reports []Report) error
	ReplaceArchived(ctx context.Context, reports []Report) error
	// ReplaceBoth writes Active before Archived. Backends that can apply
	// both in one transaction do so.
	ReplaceBoth(ctx context.Context, active, archived []Report) error
}

// Inbox is the append-only notification store keyed by recipient email.
type Inbox interface {
	Append(ctx context.Context, n *Notification) error
	ListFor(ctx context.Context, email string) ([]Notification, error)
	MarkAllRead(ctx context.Context, email string) error
}
