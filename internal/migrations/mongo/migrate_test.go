package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func findIndex(models []mongo.IndexModel, field string) *mongo.IndexModel {
	for i, m := range models {
		keys, ok := m.Keys.(bson.D)
		if !ok || len(keys) != 1 {
			continue
		}
		if keys[0].Key == field {
			return &models[i]
		}
	}
	return nil
}

func isUnique(m *mongo.IndexModel) bool {
	return m != nil && m.Options != nil && m.Options.Unique != nil && *m.Options.Unique
}

func TestUniqueIndexes(t *testing.T) {
	tests := []struct {
		name   string
		models []mongo.IndexModel
		field  string
	}{
		{"organization name", OrganizationsIndexes, "name"},
		{"room name", RoomsIndexes, "name"},
		{"room identifier", RoomsIndexes, "identifier"},
		{"reservation identifier", ReservationsIndexes, "identifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := findIndex(tt.models, tt.field)
			if idx == nil {
				t.Fatalf("expected an index on %q", tt.field)
			}
			if !isUnique(idx) {
				t.Errorf("expected the index on %q to be unique", tt.field)
			}
		})
	}
}

func TestReservationOverlapIndexCoversWindowQuery(t *testing.T) {
	want := []string{"room_id", "start_time", "end_time"}

	for _, m := range ReservationsIndexes {
		keys, ok := m.Keys.(bson.D)
		if !ok || len(keys) != len(want) {
			continue
		}
		for i, key := range keys {
			if key.Key != want[i] {
				t.Fatalf("expected compound key %v at position %d, got %s", want, i, key.Key)
			}
		}
		return
	}
	t.Fatal("expected a compound index on room_id, start_time, end_time")
}

func TestLockTTLIndexReapsOnExpiry(t *testing.T) {
	idx := findIndex(ReservationLocksIndexes, "expires_at")
	if idx == nil {
		t.Fatal("expected a TTL index on expires_at")
	}
	if idx.Options == nil || idx.Options.ExpireAfterSeconds == nil {
		t.Fatal("expected ExpireAfterSeconds to be set on the expires_at index")
	}
	if *idx.Options.ExpireAfterSeconds != 0 {
		t.Errorf("expected locks to expire exactly at expires_at, got %d seconds", *idx.Options.ExpireAfterSeconds)
	}
}
