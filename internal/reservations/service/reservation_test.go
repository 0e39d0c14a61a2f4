package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	reservationserrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/index"
	"roombook/internal/reservations/validator"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockReservationRepository struct {
	createFunc             func(ctx context.Context, res *model.Reservation) error
	findByIDFunc           func(ctx context.Context, id string) (*model.Reservation, error)
	findAllFunc            func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	updateFunc             func(ctx context.Context, id string, res *model.Reservation) error
	deleteFunc             func(ctx context.Context, id string) error
	findOverlappingFunc    func(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Reservation, error)
	existsByIDFunc         func(ctx context.Context, id string) (bool, error)
	existsByIdentifierFunc func(ctx context.Context, identifier string) (bool, error)
	countFunc              func(ctx context.Context) (int64, error)
}

func (m *mockReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, res)
	}
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) Update(ctx context.Context, id string, res *model.Reservation) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, res)
	}
	return nil
}

func (m *mockReservationRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockReservationRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	return 0, nil
}

func (m *mockReservationRepository) FindOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Reservation, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, roomID, start, end, excludeID)
	}
	return nil, nil
}

func (m *mockReservationRepository) FindAllFrom(ctx context.Context, from time.Time) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	if m.existsByIDFunc != nil {
		return m.existsByIDFunc(ctx, id)
	}
	return false, nil
}

func (m *mockReservationRepository) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	if m.existsByIdentifierFunc != nil {
		return m.existsByIdentifierFunc(ctx, identifier)
	}
	return false, nil
}

func (m *mockReservationRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type mockLockRepository struct {
	acquireFunc func(ctx context.Context, roomID string, ttl time.Duration) error
	releaseFunc func(ctx context.Context, roomID string) error
}

func (m *mockLockRepository) Acquire(ctx context.Context, roomID string, ttl time.Duration) error {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, roomID, ttl)
	}
	return nil
}

func (m *mockLockRepository) Release(ctx context.Context, roomID string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, roomID)
	}
	return nil
}

type mockRoomGate struct {
	existsFunc    func(ctx context.Context, roomID string) (bool, error)
	availableFunc func(ctx context.Context, roomID string) (bool, error)
}

func (m *mockRoomGate) Exists(ctx context.Context, roomID string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, roomID)
	}
	return true, nil
}

func (m *mockRoomGate) Available(ctx context.Context, roomID string) (bool, error) {
	if m.availableFunc != nil {
		return m.availableFunc(ctx, roomID)
	}
	return true, nil
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
		AdmissionLockTTL: 10 * time.Second,
	}
}

type fixture struct {
	service ReservationService
	repo    *mockReservationRepository
	locks   *mockLockRepository
	rooms   *mockRoomGate
	idx     *index.Index
}

func newFixture() *fixture {
	cfg := testConfig()
	repo := &mockReservationRepository{}
	locks := &mockLockRepository{}
	rooms := &mockRoomGate{}
	idx := index.New()

	return &fixture{
		service: NewReservationService(repo, locks, idx, rooms, validator.NewReservationValidator(cfg.Log), nil, cfg),
		repo:    repo,
		locks:   locks,
		rooms:   rooms,
		idx:     idx,
	}
}

var tomorrow = time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)

func window(startHour, endHour int) (time.Time, time.Time) {
	return tomorrow.Add(time.Duration(startHour) * time.Hour), tomorrow.Add(time.Duration(endHour) * time.Hour)
}

func newReservation(id, identifier, roomID string, startHour, endHour int) *model.Reservation {
	start, end := window(startHour, endHour)
	return &model.Reservation{
		ID:         id,
		Identifier: identifier,
		RoomID:     roomID,
		StartTime:  start,
		EndTime:    end,
	}
}

func wantStatus(t *testing.T, err error, status int) *apperrors.AppError {
	t.Helper()
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.StatusCode() != status {
		t.Fatalf("expected status %d, got %d (%v)", status, appErr.StatusCode(), err)
	}
	return appErr
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_Admits(t *testing.T) {
	f := newFixture()

	res := newReservation("", "standup", "room1", 0, 1)
	if err := f.service.Create(context.Background(), res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ID == "" {
		t.Fatal("expected a generated reservation ID")
	}
	if got := f.idx.Size("room1"); got != 1 {
		t.Fatalf("expected 1 indexed entry, got %d", got)
	}
}

func TestCreate_BoundaryTouchAdmitted(t *testing.T) {
	f := newFixture()

	if err := f.service.Create(context.Background(), newReservation("a", "first", "room1", 0, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// [2,4) touches [0,2) only at the boundary; half-open windows do not conflict
	if err := f.service.Create(context.Background(), newReservation("b", "second", "room1", 2, 4)); err != nil {
		t.Fatalf("boundary-touching reservation rejected: %v", err)
	}

	if got := f.idx.Size("room1"); got != 2 {
		t.Fatalf("expected 2 indexed entries, got %d", got)
	}
}

func TestCreate_OverlapRejected(t *testing.T) {
	f := newFixture()

	if err := f.service.Create(context.Background(), newReservation("a", "first", "room1", 0, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := f.service.Create(context.Background(), newReservation("b", "second", "room1", 1, 3))
	wantStatus(t, err, 409)
	if !errors.Is(err, reservationserrors.ErrRoomAlreadyBooked) {
		t.Fatalf("expected ErrRoomAlreadyBooked, got %v", err)
	}

	if got := f.idx.Size("room1"); got != 1 {
		t.Fatalf("rejected reservation must not be indexed, got %d entries", got)
	}
}

func TestCreate_OverlapCommittedByAnotherInstanceRejected(t *testing.T) {
	f := newFixture()

	// the local index is empty, but the store already holds an
	// overlapping reservation another instance committed
	stored := newReservation("foreign", "other", "room1", 0, 2)
	f.repo.findOverlappingFunc = func(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]*model.Reservation, error) {
		return []*model.Reservation{stored}, nil
	}

	err := f.service.Create(context.Background(), newReservation("a", "first", "room1", 1, 3))
	wantStatus(t, err, 409)
	if !errors.Is(err, reservationserrors.ErrRoomAlreadyBooked) {
		t.Fatalf("expected ErrRoomAlreadyBooked, got %v", err)
	}

	// the foreign admission is picked up by the local index
	if got := f.idx.Size("room1"); got != 1 {
		t.Fatalf("expected the stored reservation to be indexed, got %d entries", got)
	}
	hits := f.idx.Query("room1", stored.StartTime, stored.EndTime, "")
	if len(hits) != 1 || hits[0].ID != "foreign" {
		t.Fatalf("expected the foreign reservation in the index, got %v", hits)
	}
}

func TestCreate_SameWindowDifferentRooms(t *testing.T) {
	f := newFixture()

	if err := f.service.Create(context.Background(), newReservation("a", "first", "room1", 0, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.service.Create(context.Background(), newReservation("b", "second", "room2", 0, 2)); err != nil {
		t.Fatalf("same window on another room must be admitted: %v", err)
	}
}

func TestCreate_RoomNotFound(t *testing.T) {
	f := newFixture()
	f.rooms.existsFunc = func(ctx context.Context, roomID string) (bool, error) {
		return false, nil
	}

	err := f.service.Create(context.Background(), newReservation("a", "first", "ghost", 0, 1))
	wantStatus(t, err, 404)
}

func TestCreate_DuplicateID(t *testing.T) {
	f := newFixture()
	f.repo.existsByIDFunc = func(ctx context.Context, id string) (bool, error) {
		return true, nil
	}

	err := f.service.Create(context.Background(), newReservation("a", "first", "room1", 0, 1))
	wantStatus(t, err, 409)
	if !errors.Is(err, reservationserrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_DuplicateIdentifier(t *testing.T) {
	f := newFixture()
	f.repo.existsByIdentifierFunc = func(ctx context.Context, identifier string) (bool, error) {
		return identifier == "taken", nil
	}

	err := f.service.Create(context.Background(), newReservation("a", "taken", "room1", 0, 1))
	wantStatus(t, err, 409)
	if !errors.Is(err, reservationserrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_RoomUnavailable(t *testing.T) {
	f := newFixture()
	f.rooms.availableFunc = func(ctx context.Context, roomID string) (bool, error) {
		return false, nil
	}

	err := f.service.Create(context.Background(), newReservation("a", "first", "room1", 0, 1))
	wantStatus(t, err, 409)
	if !errors.Is(err, reservationserrors.ErrRoomUnavailable) {
		t.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
}

func TestCreate_WindowValidityErrors(t *testing.T) {
	tests := []struct {
		name               string
		startHour, endHour int
		want               error
	}{
		{"start after end", 2, 1, reservationserrors.ErrStartAfterEnd},
		{"start equals end", 1, 1, reservationserrors.ErrStartEqualsEnd},
		{"in the past", -48, -47, reservationserrors.ErrInThePast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			err := f.service.Create(context.Background(), newReservation("a", "first", "room1", tt.startHour, tt.endHour))
			wantStatus(t, err, 422)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// The identifier check must not fire before the room existence check;
// a reservation on a missing room reports NotFound even when its
// identifier is also taken.
func TestCreate_CheckOrdering(t *testing.T) {
	f := newFixture()
	f.rooms.existsFunc = func(ctx context.Context, roomID string) (bool, error) {
		return false, nil
	}
	f.repo.existsByIdentifierFunc = func(ctx context.Context, identifier string) (bool, error) {
		return true, nil
	}

	err := f.service.Create(context.Background(), newReservation("a", "taken", "ghost", 2, 1))
	wantStatus(t, err, 404)
}

func TestCreate_LockContention(t *testing.T) {
	f := newFixture()
	f.locks.acquireFunc = func(ctx context.Context, roomID string, ttl time.Duration) error {
		return reservationserrors.ErrRoomAlreadyBooked
	}

	err := f.service.Create(context.Background(), newReservation("a", "first", "room1", 0, 1))
	wantStatus(t, err, 409)
}

func TestCreate_ValidationFailure(t *testing.T) {
	f := newFixture()

	res := newReservation("a", "x", "room1", 0, 1) // identifier too short
	err := f.service.Create(context.Background(), res)
	wantStatus(t, err, 422)
}

// Two goroutines race for the same window; exactly one admission wins.
func TestCreate_ConcurrentOverlapAdmitsOne(t *testing.T) {
	f := newFixture()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res := newReservation("", fmt.Sprintf("race-%d", n), "room1", 0, 2)
			results[n] = f.service.Create(context.Background(), res)
		}(i)
	}
	wg.Wait()

	var admitted, rejected int
	for _, err := range results {
		if err == nil {
			admitted++
			continue
		}
		rejected++
		if !errors.Is(err, reservationserrors.ErrRoomAlreadyBooked) {
			t.Fatalf("loser must see ErrRoomAlreadyBooked, got %v", err)
		}
	}
	if admitted != 1 || rejected != 1 {
		t.Fatalf("expected exactly one winner, got %d admitted / %d rejected", admitted, rejected)
	}
	if got := f.idx.Size("room1"); got != 1 {
		t.Fatalf("expected 1 indexed entry, got %d", got)
	}
}

// ────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────

func TestUpdate_SelfExclusion(t *testing.T) {
	f := newFixture()

	original := newReservation("a", "standup", "room1", 0, 2)
	if err := f.service.Create(context.Background(), original); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Reservation, error) {
		return original, nil
	}
	f.repo.existsByIdentifierFunc = func(ctx context.Context, identifier string) (bool, error) {
		return identifier == "standup", nil
	}

	// extending into its own window must not conflict with itself, and
	// keeping its own identifier must not count as a duplicate
	updated := newReservation("a", "standup", "room1", 1, 3)
	if err := f.service.Update(context.Background(), "a", updated); err != nil {
		t.Fatalf("self-overlapping update rejected: %v", err)
	}

	start, _ := window(1, 3)
	hits := f.idx.Query("room1", start, start.Add(time.Minute), "")
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("index not moved to the new window: %v", hits)
	}
}

func TestUpdate_OverlapWithOtherRejected(t *testing.T) {
	f := newFixture()

	a := newReservation("a", "first", "room1", 0, 2)
	if err := f.service.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.service.Create(context.Background(), newReservation("b", "second", "room1", 4, 6)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Reservation, error) {
		return a, nil
	}

	err := f.service.Update(context.Background(), "a", newReservation("a", "first", "room1", 3, 5))
	wantStatus(t, err, 409)
}

func TestUpdate_RoomMoveRejected(t *testing.T) {
	f := newFixture()

	a := newReservation("a", "first", "room1", 0, 2)
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Reservation, error) {
		return a, nil
	}

	err := f.service.Update(context.Background(), "a", newReservation("a", "first", "room2", 0, 2))
	wantStatus(t, err, 400)
}

func TestUpdate_OmittedRoomKeepsExisting(t *testing.T) {
	f := newFixture()

	a := newReservation("a", "first", "room1", 0, 2)
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Reservation, error) {
		return a, nil
	}

	// a body without a room decodes to an empty RoomID and means
	// "keep the stored room", not "move to room ''"
	updated := newReservation("a", "first", "", 1, 3)
	if err := f.service.Update(context.Background(), "a", updated); err != nil {
		t.Fatalf("update without a room rejected: %v", err)
	}
	if updated.RoomID != "room1" {
		t.Fatalf("expected the stored room to be kept, got %q", updated.RoomID)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture()

	err := f.service.Update(context.Background(), "ghost", newReservation("ghost", "first", "room1", 0, 2))
	wantStatus(t, err, 404)
}

// ────────────────────────────────────────────────
// Delete
// ────────────────────────────────────────────────

func TestDelete_FreesWindow(t *testing.T) {
	f := newFixture()

	a := newReservation("a", "first", "room1", 0, 2)
	if err := f.service.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Reservation, error) {
		if id == "a" {
			return a, nil
		}
		return nil, reservationserrors.ErrNotFound
	}

	if err := f.service.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.idx.Size("room1"); got != 0 {
		t.Fatalf("window still occupied after delete, %d entries", got)
	}

	// the freed window admits a new reservation
	f.repo.findByIDFunc = nil
	if err := f.service.Create(context.Background(), newReservation("b", "second", "room1", 0, 2)); err != nil {
		t.Fatalf("re-admission into freed window rejected: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture()

	err := f.service.Delete(context.Background(), "ghost")
	wantStatus(t, err, 404)
}

func TestDelete_SecondDeleteNotFound(t *testing.T) {
	f := newFixture()

	a := newReservation("a", "first", "room1", 0, 2)
	if err := f.service.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted := false
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Reservation, error) {
		if deleted {
			return nil, reservationserrors.ErrNotFound
		}
		return a, nil
	}
	f.repo.deleteFunc = func(ctx context.Context, id string) error {
		deleted = true
		return nil
	}

	if err := f.service.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := f.service.Delete(context.Background(), "a")
	wantStatus(t, err, 404)
}

// ────────────────────────────────────────────────
// GetAll
// ────────────────────────────────────────────────

func TestGetAll(t *testing.T) {
	f := newFixture()
	f.repo.countFunc = func(ctx context.Context) (int64, error) {
		return 42, nil
	}
	f.repo.findAllFunc = func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
		return []*model.Reservation{
			newReservation("a", "first", "room1", 0, 1),
			newReservation("b", "second", "room1", 2, 3),
		}, nil
	}

	reservations, total, err := f.service.GetAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Fatalf("expected total 42, got %d", total)
	}
	if len(reservations) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(reservations))
	}
}
