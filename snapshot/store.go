package snapshot

import "context"

type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Latest(ctx context.Context, contract string) (*Snapshot, error)
	List(ctx context.Context, contract string, limit int) ([]*Snapshot, error)
	Prune(ctx context.Context, contract string, keep int) (int64, error)
}
