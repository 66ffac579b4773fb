package types

import "time"

// Entity carries creation and update timestamps for persisted host records
// (receipts, snapshots, deployments).
type Entity struct {
	CreatedAt time.Time `json:"created_at" grove:"created_at,notnull"`
	UpdatedAt time.Time `json:"updated_at" grove:"updated_at,notnull"`
}

// NewEntity creates a new Entity with current timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
