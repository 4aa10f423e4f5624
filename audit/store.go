package audit

import "context"

// Store appends and lists audit entries. Entries are never updated.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, opts ListOpts) ([]*Entry, error)
}

// ListOpts filters audit listings. Results are newest first.
type ListOpts struct {
	Type     Type
	TargetID string
	Limit    int
	Offset   int
}
