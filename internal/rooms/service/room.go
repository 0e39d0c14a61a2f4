package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	reservationsrepo "roombook/internal/reservations/repository"
	roomserrors "roombook/internal/rooms/errors"
	"roombook/internal/rooms/repository"
	"roombook/internal/rooms/validator"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/events"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

// OrganizationGate is the slice of the organizations domain the room
// assignment flow needs.
type OrganizationGate interface {
	Exists(ctx context.Context, organizationID string) (bool, error)
}

// ScheduleIndex is the occupancy index surface consumed by room cascades.
type ScheduleIndex interface {
	LockRoom(roomID string)
	UnlockRoom(roomID string)
	DropRoom(roomID string)
}

type RoomService interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error)
	Update(ctx context.Context, id string, room *model.Room) error
	Delete(ctx context.Context, id string) error
	AssignToOrganization(ctx context.Context, roomID, organizationID string) error

	// Gate methods consumed by the reservation admission pipeline.
	Exists(ctx context.Context, roomID string) (bool, error)
	Available(ctx context.Context, roomID string) (bool, error)
}

type roomService struct {
	repo            repository.RoomRepository
	reservationRepo reservationsrepo.ReservationRepository
	orgs            OrganizationGate
	idx             ScheduleIndex
	validator       *validator.RoomValidator
	publisher       *events.Publisher
	cfg             *config.Config
}

func NewRoomService(
	repo repository.RoomRepository,
	reservationRepo reservationsrepo.ReservationRepository,
	orgs OrganizationGate,
	idx ScheduleIndex,
	validator *validator.RoomValidator,
	publisher *events.Publisher,
	cfg *config.Config,
) RoomService {
	return &roomService{
		repo:            repo,
		reservationRepo: reservationRepo,
		orgs:            orgs,
		idx:             idx,
		validator:       validator,
		publisher:       publisher,
		cfg:             cfg,
	}
}

func (s *roomService) Create(ctx context.Context, room *model.Room) error {
	s.applyDefaults(room)
	s.sanitize(room)
	if err := s.validate(room); err != nil {
		return err
	}

	if room.OrganizationID != "" {
		exists, err := s.orgs.Exists(ctx, room.OrganizationID)
		if err != nil {
			return apperrors.Internal("Failed to check organization existence", err)
		}
		if !exists {
			return apperrors.NotFoundWithID("Organization", room.OrganizationID)
		}
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyDuplication(sessCtx, room); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, room); err != nil {
			if errors.Is(err, roomserrors.ErrAlreadyExists) {
				return apperrors.ConflictFrom(err, fmt.Sprintf("Room with ID '%s' already exists", room.ID))
			}
			return apperrors.Internal("Failed to create room", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create room", "id", room.ID, "error", err)
		return err
	}

	s.cfg.Log.Info("Room created successfully",
		"id", room.ID,
		"name", room.Name,
		"organization_id", room.OrganizationID,
	)
	return nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		if errors.Is(err, roomserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid room ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}

	return room, nil
}

func (s *roomService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error) {
	var count int64
	var rooms []*model.Room
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count rooms", "error", errCount)
			errCount = apperrors.Internal("Failed to count rooms", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		rooms, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list rooms", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve rooms", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return rooms, count, nil
}

func (s *roomService) Update(ctx context.Context, id string, room *model.Room) error {
	if id == "" {
		return apperrors.InvalidInput("Room ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	room.ID = id
	if room.Availability == nil {
		room.Availability = existing.Availability
	}
	s.applyDefaults(room)
	s.sanitize(room)
	if err := s.validate(room); err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if room.Name != existing.Name {
			taken, err := s.repo.ExistsByName(sessCtx, room.Name)
			if err != nil {
				return apperrors.Internal("Failed to check room name", err)
			}
			if taken {
				return apperrors.ConflictFrom(roomserrors.ErrAlreadyExists,
					fmt.Sprintf("Room with name '%s' already exists", room.Name))
			}
		}
		if room.Identifier != existing.Identifier {
			taken, err := s.repo.ExistsByIdentifier(sessCtx, room.Identifier)
			if err != nil {
				return apperrors.Internal("Failed to check room identifier", err)
			}
			if taken {
				return apperrors.ConflictFrom(roomserrors.ErrAlreadyExists,
					fmt.Sprintf("Room with identifier '%s' already exists", room.Identifier))
			}
		}
		if err := s.repo.Update(sessCtx, id, room); err != nil {
			if errors.Is(err, roomserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Room", id)
			}
			return apperrors.Internal("Failed to update room", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update room", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Room updated successfully", "id", id)
	return nil
}

// Delete removes the room and cascades its reservations in one transaction.
// The room's admission lock is held so no concurrent admission can slip a
// reservation in while the cascade runs.
func (s *roomService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Room ID cannot be empty")
	}

	s.idx.LockRoom(id)
	defer s.idx.UnlockRoom(id)

	var removed int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, roomserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Room", id)
			}
			return apperrors.Internal("Failed to delete room", err)
		}
		var err error
		removed, err = s.reservationRepo.DeleteByRoom(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete room reservations", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.idx.DropRoom(id)

	s.cfg.Log.Info("Room deleted successfully", "id", id, "cascaded_reservations", removed)
	return nil
}

// AssignToOrganization binds a room to an organization. The availability
// flag gates assignment but is left untouched; flipping it is an explicit
// room update.
func (s *roomService) AssignToOrganization(ctx context.Context, roomID, organizationID string) error {
	if roomID == "" || organizationID == "" {
		return apperrors.InvalidInput("Room ID and organization ID cannot be empty")
	}

	room, err := s.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	exists, err := s.orgs.Exists(ctx, organizationID)
	if err != nil {
		return apperrors.Internal("Failed to check organization existence", err)
	}
	if !exists {
		return apperrors.NotFoundWithID("Organization", organizationID)
	}

	if !room.Available() {
		return apperrors.ConflictFrom(roomserrors.ErrUnavailable,
			fmt.Sprintf("Room '%s' is not available for assignment", roomID))
	}

	if err := s.repo.SetOrganization(ctx, roomID, organizationID); err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Room", roomID)
		}
		return apperrors.Internal("Failed to assign room to organization", err)
	}

	s.publisher.Publish(ctx, events.TypeRoomAssigned, roomID, map[string]string{
		"room_id":         roomID,
		"organization_id": organizationID,
	})

	s.cfg.Log.Info("Room assigned to organization", "room_id", roomID, "organization_id", organizationID)
	return nil
}

func (s *roomService) Exists(ctx context.Context, roomID string) (bool, error) {
	if roomID == "" {
		return false, nil
	}
	return s.repo.ExistsByID(ctx, roomID)
}

func (s *roomService) Available(ctx context.Context, roomID string) (bool, error) {
	room, err := s.repo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, roomserrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return room.Available(), nil
}

// --- Helpers ---

func (s *roomService) applyDefaults(room *model.Room) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Availability == nil {
		t := true
		room.Availability = &t
	}
	if room.Places == nil {
		room.Places = map[model.PlaceType]int{}
	}
	if _, ok := room.Places[model.PlaceSitting]; !ok {
		room.Places[model.PlaceSitting] = 0
	}
	if _, ok := room.Places[model.PlaceStanding]; !ok {
		room.Places[model.PlaceStanding] = 0
	}
}

func (s *roomService) sanitize(room *model.Room) {
	room.Name = sanitizer.NormalizeName(room.Name)
	room.Identifier = sanitizer.NormalizeIdentifier(room.Identifier)
	for placeType, capacity := range room.Places {
		room.Places[placeType] = sanitizer.NormalizePlaces(capacity)
	}
}

func (s *roomService) validate(room *model.Room) error {
	if err := s.validator.Validate(room); err != nil {
		s.cfg.Log.Warn("Room validation failed", "error", err)
		return apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *roomService) verifyDuplication(ctx context.Context, room *model.Room) error {
	idTaken, err := s.repo.ExistsByID(ctx, room.ID)
	if err != nil {
		return apperrors.Internal("Failed to check room existence", err)
	}
	if idTaken {
		return apperrors.ConflictFrom(roomserrors.ErrAlreadyExists,
			fmt.Sprintf("Room with ID '%s' already exists", room.ID))
	}

	nameTaken, err := s.repo.ExistsByName(ctx, room.Name)
	if err != nil {
		return apperrors.Internal("Failed to check room name", err)
	}
	if nameTaken {
		return apperrors.ConflictFrom(roomserrors.ErrAlreadyExists,
			fmt.Sprintf("Room with name '%s' already exists", room.Name))
	}

	identifierTaken, err := s.repo.ExistsByIdentifier(ctx, room.Identifier)
	if err != nil {
		return apperrors.Internal("Failed to check room identifier", err)
	}
	if identifierTaken {
		return apperrors.ConflictFrom(roomserrors.ErrAlreadyExists,
			fmt.Sprintf("Room with identifier '%s' already exists", room.Identifier))
	}

	return nil
}
