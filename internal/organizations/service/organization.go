package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	organizationserrors "roombook/internal/organizations/errors"
	"roombook/internal/organizations/repository"
	"roombook/internal/organizations/validator"
	reservationsrepo "roombook/internal/reservations/repository"
	roomsrepo "roombook/internal/rooms/repository"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

// ScheduleIndex is the occupancy index surface consumed by org cascades.
type ScheduleIndex interface {
	LockRoom(roomID string)
	UnlockRoom(roomID string)
	DropRoom(roomID string)
}

type OrganizationService interface {
	Create(ctx context.Context, organization *model.Organization) error
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Organization, int64, error)
	Update(ctx context.Context, id string, organization *model.Organization) error
	Delete(ctx context.Context, id string) error

	// Gate method consumed by the rooms domain.
	Exists(ctx context.Context, organizationID string) (bool, error)
}

type organizationService struct {
	repo            repository.OrganizationRepository
	roomRepo        roomsrepo.RoomRepository
	reservationRepo reservationsrepo.ReservationRepository
	idx             ScheduleIndex
	validator       *validator.OrganizationValidator
	cfg             *config.Config
}

func NewOrganizationService(
	repo repository.OrganizationRepository,
	roomRepo roomsrepo.RoomRepository,
	reservationRepo reservationsrepo.ReservationRepository,
	idx ScheduleIndex,
	validator *validator.OrganizationValidator,
	cfg *config.Config,
) OrganizationService {
	return &organizationService{
		repo:            repo,
		roomRepo:        roomRepo,
		reservationRepo: reservationRepo,
		idx:             idx,
		validator:       validator,
		cfg:             cfg,
	}
}

func (s *organizationService) Create(ctx context.Context, organization *model.Organization) error {
	s.applyDefaults(organization)
	s.sanitize(organization)
	if err := s.validate(organization); err != nil {
		return err
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyDuplication(sessCtx, organization); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, organization); err != nil {
			if errors.Is(err, organizationserrors.ErrAlreadyExists) {
				return apperrors.ConflictFrom(err, fmt.Sprintf("Organization with ID '%s' already exists", organization.ID))
			}
			return apperrors.Internal("Failed to create organization", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create organization", "id", organization.ID, "error", err)
		return err
	}

	s.cfg.Log.Info("Organization created successfully", "id", organization.ID, "name", organization.Name)
	return nil
}

func (s *organizationService) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Organization ID cannot be empty")
	}

	organization, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, organizationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Organization", id)
		}
		if errors.Is(err, organizationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid organization ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve organization", err)
	}

	return organization, nil
}

func (s *organizationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Organization, int64, error) {
	var count int64
	var organizations []*model.Organization
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count organizations", "error", errCount)
			errCount = apperrors.Internal("Failed to count organizations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		organizations, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list organizations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve organizations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return organizations, count, nil
}

func (s *organizationService) Update(ctx context.Context, id string, organization *model.Organization) error {
	if id == "" {
		return apperrors.InvalidInput("Organization ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	organization.ID = id
	s.sanitize(organization)
	if err := s.validate(organization); err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if organization.Name != existing.Name {
			taken, err := s.repo.ExistsByName(sessCtx, organization.Name)
			if err != nil {
				return apperrors.Internal("Failed to check organization name", err)
			}
			if taken {
				return apperrors.ConflictFrom(organizationserrors.ErrAlreadyExists,
					fmt.Sprintf("Organization with name '%s' already exists", organization.Name))
			}
		}
		if err := s.repo.Update(sessCtx, id, organization); err != nil {
			if errors.Is(err, organizationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Organization", id)
			}
			return apperrors.Internal("Failed to update organization", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update organization", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Organization updated successfully", "id", id)
	return nil
}

// Delete cascades Organization -> Rooms -> Reservations inside one
// transaction. Every owned room's admission lock is held for the duration
// so concurrent admissions cannot write into a room that is going away.
// Room IDs are locked in sorted order to keep cascades deadlock-free
// against each other.
func (s *organizationService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Organization ID cannot be empty")
	}

	rooms, err := s.roomRepo.FindByOrganization(ctx, id)
	if err != nil {
		return apperrors.Internal("Failed to find organization rooms", err)
	}

	roomIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
	}
	sort.Strings(roomIDs)

	for _, roomID := range roomIDs {
		s.idx.LockRoom(roomID)
	}
	defer func() {
		for _, roomID := range roomIDs {
			s.idx.UnlockRoom(roomID)
		}
	}()

	var cascadedReservations int64
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, organizationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Organization", id)
			}
			return apperrors.Internal("Failed to delete organization", err)
		}
		if _, err := s.roomRepo.DeleteByOrganization(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to delete organization rooms", err)
		}
		for _, roomID := range roomIDs {
			removed, err := s.reservationRepo.DeleteByRoom(sessCtx, roomID)
			if err != nil {
				return apperrors.Internal("Failed to delete room reservations", err)
			}
			cascadedReservations += removed
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, roomID := range roomIDs {
		s.idx.DropRoom(roomID)
	}

	s.cfg.Log.Info("Organization deleted successfully",
		"id", id,
		"cascaded_rooms", len(roomIDs),
		"cascaded_reservations", cascadedReservations,
	)
	return nil
}

func (s *organizationService) Exists(ctx context.Context, organizationID string) (bool, error) {
	if organizationID == "" {
		return false, nil
	}
	return s.repo.ExistsByID(ctx, organizationID)
}

// --- Helpers ---

func (s *organizationService) applyDefaults(organization *model.Organization) {
	if organization.ID == "" {
		organization.ID = uuid.NewString()
	}
}

func (s *organizationService) sanitize(organization *model.Organization) {
	organization.Name = sanitizer.NormalizeName(organization.Name)
}

func (s *organizationService) validate(organization *model.Organization) error {
	if err := s.validator.Validate(organization); err != nil {
		s.cfg.Log.Warn("Organization validation failed", "error", err)
		return apperrors.Validation("Organization validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *organizationService) verifyDuplication(ctx context.Context, organization *model.Organization) error {
	idTaken, err := s.repo.ExistsByID(ctx, organization.ID)
	if err != nil {
		return apperrors.Internal("Failed to check organization existence", err)
	}
	if idTaken {
		return apperrors.ConflictFrom(organizationserrors.ErrAlreadyExists,
			fmt.Sprintf("Organization with ID '%s' already exists", organization.ID))
	}

	nameTaken, err := s.repo.ExistsByName(ctx, organization.Name)
	if err != nil {
		return apperrors.Internal("Failed to check organization name", err)
	}
	if nameTaken {
		return apperrors.ConflictFrom(organizationserrors.ErrAlreadyExists,
			fmt.Sprintf("Organization with name '%s' already exists", organization.Name))
	}

	return nil
}
