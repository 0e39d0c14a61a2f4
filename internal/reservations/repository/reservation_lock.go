package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	reservationserrors "roombook/internal/reservations/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"
)

const (
	LockCollectionName = "Reservation_locks"
)

// ReservationLockRepository provides a cross-instance advisory lock per
// room. Acquisition relies on the unique _id index: a duplicate key
// means another admission holds the room. Stale locks are reaped by the
// TTL index on expires_at that the migration job creates; Acquire also
// takes over expired locks itself since the TTL monitor only runs
// periodically.
type ReservationLockRepository interface {
	Acquire(ctx context.Context, roomID string, ttl time.Duration) error
	Release(ctx context.Context, roomID string) error
}

type mongoReservationLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReservationLockRepository(cfg *config.Config) ReservationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

func lockID(roomID string) string {
	return "room_" + roomID
}

func (r *mongoReservationLockRepository) Acquire(ctx context.Context, roomID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	lock := model.ReservationLock{
		ID:        lockID(roomID),
		RoomID:    roomID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to acquire room lock: %w", err)
		}
		return r.takeOverExpired(ctx, lock, now)
	}

	return nil
}

// takeOverExpired deletes the holder's lock if it has expired and retries
// the insert once. A live holder or a concurrent taker both surface as
// lock contention.
func (r *mongoReservationLockRepository) takeOverExpired(ctx context.Context, lock model.ReservationLock, now time.Time) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":        lock.ID,
		"expires_at": bson.M{"$lt": now},
	})
	if err != nil || result.DeletedCount == 0 {
		return reservationserrors.ErrRoomAlreadyBooked
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrRoomAlreadyBooked
		}
		return fmt.Errorf("failed to acquire room lock: %w", err)
	}

	return nil
}

func (r *mongoReservationLockRepository) Release(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID(roomID)}); err != nil {
		return fmt.Errorf("failed to release room lock: %w", err)
	}

	return nil
}
