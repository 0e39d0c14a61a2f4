package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	organizationserrors "roombook/internal/organizations/errors"
	"roombook/internal/organizations/validator"
	"roombook/internal/reservations/index"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockOrganizationRepository struct {
	createFunc       func(ctx context.Context, org *model.Organization) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Organization, error)
	deleteFunc       func(ctx context.Context, id string) error
	existsByIDFunc   func(ctx context.Context, id string) (bool, error)
	existsByNameFunc func(ctx context.Context, name string) (bool, error)
}

func (m *mockOrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, org)
	}
	return nil
}

func (m *mockOrganizationRepository) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, organizationserrors.ErrNotFound
}

func (m *mockOrganizationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Organization, error) {
	return []*model.Organization{}, nil
}

func (m *mockOrganizationRepository) Update(ctx context.Context, id string, org *model.Organization) error {
	return nil
}

func (m *mockOrganizationRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockOrganizationRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	if m.existsByIDFunc != nil {
		return m.existsByIDFunc(ctx, id)
	}
	return false, nil
}

func (m *mockOrganizationRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	if m.existsByNameFunc != nil {
		return m.existsByNameFunc(ctx, name)
	}
	return false, nil
}

func (m *mockOrganizationRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockOrganizationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type mockRoomRepository struct {
	findByOrganizationFunc   func(ctx context.Context, organizationID string) ([]*model.Room, error)
	deleteByOrganizationFunc func(ctx context.Context, organizationID string) (int64, error)
}

func (m *mockRoomRepository) Create(ctx context.Context, room *model.Room) error { return nil }

func (m *mockRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	return nil, nil
}

func (m *mockRoomRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Room, error) {
	return nil, nil
}

func (m *mockRoomRepository) FindByOrganization(ctx context.Context, organizationID string) ([]*model.Room, error) {
	if m.findByOrganizationFunc != nil {
		return m.findByOrganizationFunc(ctx, organizationID)
	}
	return nil, nil
}

func (m *mockRoomRepository) Update(ctx context.Context, id string, room *model.Room) error {
	return nil
}

func (m *mockRoomRepository) SetOrganization(ctx context.Context, id, organizationID string) error {
	return nil
}

func (m *mockRoomRepository) Delete(ctx context.Context, id string) error { return nil }

func (m *mockRoomRepository) DeleteByOrganization(ctx context.Context, organizationID string) (int64, error) {
	if m.deleteByOrganizationFunc != nil {
		return m.deleteByOrganizationFunc(ctx, organizationID)
	}
	return 0, nil
}

func (m *mockRoomRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockRoomRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (m *mockRoomRepository) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	return false, nil
}

func (m *mockRoomRepository) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockRoomRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type mockReservationRepository struct {
	deleteByRoomFunc func(ctx context.Context, roomID string) (int64, error)
}

func (m *mockReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationRepository) Update(ctx context.Context, id string, res *model.Reservation) error {
	return nil
}

func (m *mockReservationRepository) Delete(ctx context.Context, id string) error { return nil }

func (m *mockReservationRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	if m.deleteByRoomFunc != nil {
		return m.deleteByRoomFunc(ctx, roomID)
	}
	return 0, nil
}

func (m *mockReservationRepository) FindOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationRepository) FindAllFrom(ctx context.Context, from time.Time) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockReservationRepository) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	return false, nil
}

func (m *mockReservationRepository) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

// ────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
	}
}

type fixture struct {
	service      OrganizationService
	repo         *mockOrganizationRepository
	rooms        *mockRoomRepository
	reservations *mockReservationRepository
	idx          *index.Index
}

func newFixture() *fixture {
	cfg := testConfig()
	repo := &mockOrganizationRepository{}
	rooms := &mockRoomRepository{}
	reservations := &mockReservationRepository{}
	idx := index.New()

	return &fixture{
		service:      NewOrganizationService(repo, rooms, reservations, idx, validator.NewOrganizationValidator(cfg.Log), cfg),
		repo:         repo,
		rooms:        rooms,
		reservations: reservations,
		idx:          idx,
	}
}

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.StatusCode() != status {
		t.Fatalf("expected status %d, got %d (%v)", status, appErr.StatusCode(), err)
	}
}

// ────────────────────────────────────────────────
// Create / Update
// ────────────────────────────────────────────────

func TestCreate_GeneratesID(t *testing.T) {
	f := newFixture()

	org := &model.Organization{Name: "Acme Corp"}
	if err := f.service.Create(context.Background(), org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID == "" {
		t.Fatal("expected a generated organization ID")
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	f := newFixture()
	f.repo.existsByNameFunc = func(ctx context.Context, name string) (bool, error) {
		return true, nil
	}

	err := f.service.Create(context.Background(), &model.Organization{Name: "Acme Corp"})
	wantStatus(t, err, 409)
	if !errors.Is(err, organizationserrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_NameTooShort(t *testing.T) {
	f := newFixture()

	err := f.service.Create(context.Background(), &model.Organization{Name: "A"})
	wantStatus(t, err, 422)
}

func TestCreate_NameIsNormalized(t *testing.T) {
	f := newFixture()

	org := &model.Organization{Name: "  Acme   Corp  "}
	if err := f.service.Create(context.Background(), org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.Name != "Acme Corp" {
		t.Fatalf("expected normalized name, got %q", org.Name)
	}
}

func TestUpdate_KeepingOwnNameAllowed(t *testing.T) {
	f := newFixture()
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Organization, error) {
		return &model.Organization{ID: id, Name: "Acme Corp"}, nil
	}
	f.repo.existsByNameFunc = func(ctx context.Context, name string) (bool, error) {
		return true, nil
	}

	if err := f.service.Update(context.Background(), "org1", &model.Organization{Name: "Acme Corp"}); err != nil {
		t.Fatalf("update keeping its own name rejected: %v", err)
	}
}

// ────────────────────────────────────────────────
// Delete cascade
// ────────────────────────────────────────────────

func TestDelete_CascadesRoomsAndReservations(t *testing.T) {
	f := newFixture()

	f.rooms.findByOrganizationFunc = func(ctx context.Context, organizationID string) ([]*model.Room, error) {
		return []*model.Room{{ID: "room2"}, {ID: "room1"}}, nil
	}

	for _, roomID := range []string{"room1", "room2"} {
		f.idx.Insert(&model.Reservation{
			ID:        "res-" + roomID,
			RoomID:    roomID,
			StartTime: time.Now().Add(time.Hour),
			EndTime:   time.Now().Add(2 * time.Hour),
		})
	}

	var deletedOrg string
	f.rooms.deleteByOrganizationFunc = func(ctx context.Context, organizationID string) (int64, error) {
		deletedOrg = organizationID
		return 2, nil
	}

	cascaded := map[string]bool{}
	f.reservations.deleteByRoomFunc = func(ctx context.Context, roomID string) (int64, error) {
		cascaded[roomID] = true
		return 1, nil
	}

	if err := f.service.Delete(context.Background(), "org1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deletedOrg != "org1" {
		t.Fatalf("expected room cascade for org1, got %q", deletedOrg)
	}
	if !cascaded["room1"] || !cascaded["room2"] {
		t.Fatalf("expected reservation cascade for both rooms, got %v", cascaded)
	}
	for _, roomID := range []string{"room1", "room2"} {
		if got := f.idx.Size(roomID); got != 0 {
			t.Fatalf("index for %s must be cleared, got %d entries", roomID, got)
		}
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture()
	f.repo.deleteFunc = func(ctx context.Context, id string) error {
		return organizationserrors.ErrNotFound
	}

	err := f.service.Delete(context.Background(), "ghost")
	wantStatus(t, err, 404)
}

// A failed cascade leaves the index untouched; only a committed
// transaction may clear room schedules.
func TestDelete_FailedCascadeKeepsIndex(t *testing.T) {
	f := newFixture()

	f.rooms.findByOrganizationFunc = func(ctx context.Context, organizationID string) ([]*model.Room, error) {
		return []*model.Room{{ID: "room1"}}, nil
	}
	f.idx.Insert(&model.Reservation{
		ID:        "res1",
		RoomID:    "room1",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	})
	f.reservations.deleteByRoomFunc = func(ctx context.Context, roomID string) (int64, error) {
		return 0, errors.New("write conflict")
	}

	if err := f.service.Delete(context.Background(), "org1"); err == nil {
		t.Fatal("expected cascade failure to surface")
	}
	if got := f.idx.Size("room1"); got != 1 {
		t.Fatalf("index must survive a failed cascade, got %d entries", got)
	}
}
