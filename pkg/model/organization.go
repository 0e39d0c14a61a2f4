package model

import "time"

type Organization struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,min=1,max=64"`
	Name      string    `json:"name" bson:"name" validate:"required,min=2,max=20"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
