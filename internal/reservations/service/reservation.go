package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"roombook/internal/reservations/conflict"
	reservationserrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/index"
	"roombook/internal/reservations/repository"
	"roombook/internal/reservations/validator"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/events"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

// RoomGate is the slice of the rooms domain the admission pipeline needs.
type RoomGate interface {
	Exists(ctx context.Context, roomID string) (bool, error)
	Available(ctx context.Context, roomID string) (bool, error)
}

type ReservationService interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	Update(ctx context.Context, id string, reservation *model.Reservation) error
	Delete(ctx context.Context, id string) error
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.ReservationLockRepository
	idx       *index.Index
	rooms     RoomGate
	validator *validator.ReservationValidator
	publisher *events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.ReservationLockRepository,
	idx *index.Index,
	rooms RoomGate,
	validator *validator.ReservationValidator,
	publisher *events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		idx:       idx,
		rooms:     rooms,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create runs the admission pipeline. The precondition checks report the
// first failure in a fixed order: room existence, duplication, room
// availability, then window validity. Only after all of them pass does the
// pipeline enter the per-room exclusion scope for the conflict decision.
func (s *reservationService) Create(ctx context.Context, reservation *model.Reservation) error {
	s.applyDefaults(reservation)
	s.sanitize(reservation)
	if err := s.validate(reservation); err != nil {
		return err
	}

	if err := s.checkPreconditions(ctx, reservation, ""); err != nil {
		return err
	}

	release, err := s.lockRoom(ctx, reservation.RoomID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.checkConflicts(ctx, reservation.RoomID, reservation.StartTime, reservation.EndTime, ""); err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			if errors.Is(err, reservationserrors.ErrAlreadyExists) {
				return apperrors.ConflictFrom(err, fmt.Sprintf("Reservation with ID '%s' already exists", reservation.ID))
			}
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to admit reservation", "id", reservation.ID, "room_id", reservation.RoomID, "error", err)
		return err
	}

	s.idx.Insert(reservation)

	s.publisher.Publish(ctx, events.TypeReservationAdmitted, reservation.RoomID, reservation)

	s.cfg.Log.Info("Reservation admitted",
		"id", reservation.ID,
		"room_id", reservation.RoomID,
		"start_time", reservation.StartTime,
		"end_time", reservation.EndTime,
	)
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, count, nil
}

// Update replaces the full reservation entity. The stored room binding is
// immutable; an omitted room keeps it, and moving a reservation to another
// room is a delete plus a fresh admission so both rooms' conflict decisions
// stay serialized.
func (s *reservationService) Update(ctx context.Context, id string, reservation *model.Reservation) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	reservation.ID = id
	if reservation.RoomID == "" {
		reservation.RoomID = existing.RoomID
	}
	if reservation.RoomID != existing.RoomID {
		return apperrors.InvalidInput("Reservation cannot be moved to a different room; delete and re-create it instead")
	}

	s.sanitize(reservation)
	if err := s.validate(reservation); err != nil {
		return err
	}

	if err := s.checkPreconditions(ctx, reservation, existing.Identifier); err != nil {
		return err
	}

	release, err := s.lockRoom(ctx, reservation.RoomID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.checkConflicts(ctx, reservation.RoomID, reservation.StartTime, reservation.EndTime, id); err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Update(sessCtx, id, reservation); err != nil {
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			return apperrors.Internal("Failed to update reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update reservation", "id", id, "error", err)
		return err
	}

	s.idx.Update(reservation.RoomID, id, reservation.StartTime, reservation.EndTime)

	s.publisher.Publish(ctx, events.TypeReservationUpdated, reservation.RoomID, reservation)

	s.cfg.Log.Info("Reservation updated", "id", id, "room_id", reservation.RoomID)
	return nil
}

func (s *reservationService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	release, err := s.lockRoom(ctx, existing.RoomID)
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			return apperrors.Internal("Failed to delete reservation", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.idx.Remove(existing.RoomID, id)

	s.publisher.Publish(ctx, events.TypeReservationRemoved, existing.RoomID, existing)

	s.cfg.Log.Info("Reservation deleted", "id", id, "room_id", existing.RoomID)
	return nil
}

// --- Helpers ---

func (s *reservationService) applyDefaults(res *model.Reservation) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
}

func (s *reservationService) sanitize(res *model.Reservation) {
	res.Identifier = sanitizer.NormalizeIdentifier(res.Identifier)
}

func (s *reservationService) validate(res *model.Reservation) error {
	if err := s.validator.Validate(res); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// checkPreconditions enforces the fixed check order shared by admission
// and update. selfIdentifier lets an update keep its own identifier.
func (s *reservationService) checkPreconditions(ctx context.Context, res *model.Reservation, selfIdentifier string) error {
	exists, err := s.rooms.Exists(ctx, res.RoomID)
	if err != nil {
		return apperrors.Internal("Failed to check room existence", err)
	}
	if !exists {
		return apperrors.NotFoundWithID("Room", res.RoomID)
	}

	if selfIdentifier == "" {
		idTaken, err := s.repo.ExistsByID(ctx, res.ID)
		if err != nil {
			return apperrors.Internal("Failed to check reservation existence", err)
		}
		if idTaken {
			return apperrors.ConflictFrom(reservationserrors.ErrAlreadyExists,
				fmt.Sprintf("Reservation with ID '%s' already exists", res.ID))
		}
	}

	if res.Identifier != selfIdentifier {
		identifierTaken, err := s.repo.ExistsByIdentifier(ctx, res.Identifier)
		if err != nil {
			return apperrors.Internal("Failed to check reservation identifier", err)
		}
		if identifierTaken {
			return apperrors.ConflictFrom(reservationserrors.ErrAlreadyExists,
				fmt.Sprintf("Reservation with identifier '%s' already exists", res.Identifier))
		}
	}

	available, err := s.rooms.Available(ctx, res.RoomID)
	if err != nil {
		return apperrors.Internal("Failed to check room availability", err)
	}
	if !available {
		return apperrors.ConflictFrom(reservationserrors.ErrRoomUnavailable,
			fmt.Sprintf("Room '%s' is not available for reservations", res.RoomID))
	}

	if err := conflict.ValidateWindow(res.StartTime, res.EndTime, s.now()); err != nil {
		return apperrors.ValidationFrom(err, "Invalid reservation window")
	}

	return nil
}

// lockRoom enters the per-room exclusion scope: first the in-process room
// mutex, then the cross-instance advisory lock. The returned func releases
// both in reverse order.
func (s *reservationService) lockRoom(ctx context.Context, roomID string) (func(), error) {
	s.idx.LockRoom(roomID)

	if err := s.lockRepo.Acquire(ctx, roomID, s.cfg.AdmissionLockTTL); err != nil {
		s.idx.UnlockRoom(roomID)
		if errors.Is(err, reservationserrors.ErrRoomAlreadyBooked) {
			return nil, apperrors.Conflict("This room is currently being booked by another request. Please try again.")
		}
		return nil, apperrors.Internal("Failed to acquire room lock", err)
	}

	return func() {
		if err := s.lockRepo.Release(ctx, roomID); err != nil {
			s.cfg.Log.Warn("Failed to release room lock", "room_id", roomID, "error", err)
		}
		s.idx.UnlockRoom(roomID)
	}, nil
}

// checkConflicts makes the overlap decision inside the exclusion scope.
// The in-process index answers for admissions this instance made; the
// store query catches reservations another instance committed after this
// instance seeded its index.
func (s *reservationService) checkConflicts(ctx context.Context, roomID string, start, end time.Time, excludeID string) error {
	if overlapping := s.idx.Query(roomID, start, end, excludeID); len(overlapping) > 0 {
		return overlapConflict(overlapping[0].Start, overlapping[0].End)
	}

	stored, err := s.repo.FindOverlapping(ctx, roomID, start, end, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check for overlapping reservations", err)
	}
	if len(stored) > 0 {
		// Catch up the local index with the foreign admission.
		s.idx.Insert(stored[0])
		return overlapConflict(stored[0].StartTime, stored[0].EndTime)
	}

	return nil
}

func overlapConflict(start, end time.Time) error {
	return apperrors.ConflictFrom(reservationserrors.ErrRoomAlreadyBooked, fmt.Sprintf(
		"Reservation window overlaps an existing reservation (%s - %s)",
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	))
}
