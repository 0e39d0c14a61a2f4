package model

import "time"

// PlaceType is the closed set of place categories a room reports capacity for.
type PlaceType string

const (
	PlaceSitting  PlaceType = "sitting"
	PlaceStanding PlaceType = "standing"
)

// Valid reports whether the place type is one of the known categories.
func (p PlaceType) Valid() bool {
	return p == PlaceSitting || p == PlaceStanding
}

type Room struct {
	ID             string            `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,min=1,max=64"`
	OrganizationID string            `json:"organization_id,omitempty" bson:"organization_id,omitempty" validate:"omitempty,min=1,max=64"`
	Name           string            `json:"name" bson:"name" validate:"required,min=2,max=20"`
	Identifier     string            `json:"identifier" bson:"identifier" validate:"required,min=2,max=20"`
	Level          int               `json:"level" bson:"level" validate:"min=0,max=10"`
	Availability   *bool             `json:"availability,omitempty" bson:"availability" validate:"omitempty"`
	Places         map[PlaceType]int `json:"places" bson:"places" validate:"required,places_map"`
	CreatedAt      time.Time         `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Available reports the bookable flag, treating an unset pointer as the
// default "true" so documents written before the flag existed stay bookable.
func (r *Room) Available() bool {
	return r.Availability == nil || *r.Availability
}
