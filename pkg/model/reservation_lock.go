package model

import "time"

// ReservationLock is an advisory per-room lock document guarding the
// overlap-check-then-commit sequence against concurrent admissions from
// other service instances. Expired locks are reaped by a TTL index.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	RoomID    string    `bson:"room_id" json:"room_id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
