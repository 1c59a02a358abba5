package models

import "time"

// Record carries identity and optimistic-lock metadata shared by every stored entity.
type Record struct {
	ID        string    `json:"id" bson:"_id"`
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Meta exposes the record header to storage adapters.
func (r *Record) Meta() *Record { return r }

// Stamp sets the record identity and timestamps for a newly created entity.
func (r *Record) Stamp(id string, now time.Time) {
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
}
