package model

import "time"

// Reservation occupies the half-open window [StartTime, EndTime) on one room.
type Reservation struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,min=1,max=64"`
	Identifier string    `json:"identifier" bson:"identifier" validate:"required,min=2,max=20"`
	RoomID     string    `json:"room_id" bson:"room_id" validate:"required,min=1,max=64"`
	StartTime  time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" bson:"end_time" validate:"required"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
