package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"subscribers-go/internal/events"
	"subscribers-go/internal/logging"
	"subscribers-go/internal/metrics"
	"subscribers-go/internal/models"
	"subscribers-go/internal/repository"
	"subscribers-go/internal/repository/repositorytest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []events.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *SubscriberService
	repo      *repositorytest.MemoryRepository
	publisher *recordingPublisher
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      repositorytest.NewMemoryRepository(),
		publisher: &recordingPublisher{},
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	logger := logging.New(io.Discard, logrus.DebugLevel)
	f.svc = NewSubscriberService(f.repo, f.publisher, metrics.New("test"), logger)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func strPtr(s string) *string { return &s }

func (f *fixture) create(t *testing.T, email, name string) *models.Subscriber {
	t.Helper()

	s, err := f.svc.CreateSubscriber(context.Background(), &models.CreateSubscriberRequest{Email: email, Name: name})
	require.NoError(t, err)
	return s
}

func requireValidation(t *testing.T, err error) *models.ValidationError {
	t.Helper()

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestCreateSubscriber(t *testing.T) {
	f := newFixture(t)

	s := f.create(t, "test@test.com", "John Smith")

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, "test@test.com", s.Email)
	assert.Equal(t, "John Smith", s.Name)
	assert.Equal(t, models.StatusActive, s.Status)
	assert.False(t, s.CreatedAt.IsZero())

	stored, err := f.repo.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Equal(t, []events.Type{events.SubscriberCreated}, f.publisher.types())
}

func TestCreateNormalizesEmail(t *testing.T) {
	f := newFixture(t)

	s := f.create(t, "TEST@EXAMPLE.COM  ", "")

	stored, err := f.repo.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", stored.Email)
}

func TestCreateWithExplicitStatus(t *testing.T) {
	f := newFixture(t)

	s, err := f.svc.CreateSubscriber(context.Background(), &models.CreateSubscriberRequest{
		Email:  "a@example.com",
		Status: strPtr("inactive"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, s.Status)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		req  models.CreateSubscriberRequest
		want string
	}{
		{"blank", models.CreateSubscriberRequest{Email: "   ", Name: "John Smith"}, "Email can't be blank"},
		{"missing", models.CreateSubscriberRequest{Name: "John Smith"}, "Email can't be blank"},
		{"format", models.CreateSubscriberRequest{Email: "invalid-email"}, "Email must be a valid email address"},
		{"status", models.CreateSubscriberRequest{Email: "a@b.com", Status: strPtr("invalid_status")}, "Status invalid_status is not a valid status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.CreateSubscriber(context.Background(), &tc.req)
			verr := requireValidation(t, err)
			assert.Contains(t, verr.FullMessages(), tc.want)
			assert.Zero(t, f.repo.Len())
			assert.Empty(t, f.publisher.types())
		})
	}
}

func TestCreateRejectsDuplicateIgnoringCase(t *testing.T) {
	f := newFixture(t)
	f.create(t, "test@example.com", "John Smith")

	_, err := f.svc.CreateSubscriber(context.Background(), &models.CreateSubscriberRequest{
		Email: "  Test@Example.COM",
		Name:  "Jane Smith",
	})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Email has already been taken"}, verr.FullMessages())
	assert.Equal(t, 1, f.repo.Len())
}

// raceRepository hides existing rows from the application-level check, the
// way a concurrent writer would, so only the store constraint can catch it.
type raceRepository struct {
	*repositorytest.MemoryRepository
}

func (raceRepository) ExistsByNormalizedEmail(context.Context, string, uuid.UUID) (bool, error) {
	return false, nil
}

func TestCreateMapsStoreDuplicateToValidationError(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = raceRepository{f.repo}
	f.create(t, "test@example.com", "")

	_, err := f.svc.CreateSubscriber(context.Background(), &models.CreateSubscriberRequest{Email: "test@example.com"})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Email has already been taken"}, verr.FullMessages())
	assert.NotErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestCreatePropagatesStoreFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk full")
	f.repo.Err = boom

	_, err := f.svc.CreateSubscriber(context.Background(), &models.CreateSubscriberRequest{Email: "a@b.com"})
	assert.ErrorIs(t, err, boom)
}

func TestCreateSucceedsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	s := f.create(t, "a@b.com", "")
	assert.Equal(t, 1, f.repo.Len())
	assert.Equal(t, "a@b.com", s.Email)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "test@test.com", "John Smith")

	updated, err := f.svc.UpdateSubscriber(context.Background(), s.ID, &models.UpdateSubscriberRequest{Status: strPtr("inactive")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, updated.Status)
	assert.Equal(t, "test@test.com", updated.Email)
	assert.Equal(t, "John Smith", updated.Name)
	assert.True(t, updated.UpdatedAt.After(s.UpdatedAt))

	stored, err := f.repo.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, stored.Status)
	assert.Equal(t, s.CreatedAt, stored.CreatedAt)
	assert.Equal(t, []events.Type{events.SubscriberCreated, events.SubscriberUpdated}, f.publisher.types())
}

func TestUpdateWithOwnEmailIsNotDuplicate(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "test@test.com", "John Smith")

	updated, err := f.svc.UpdateSubscriber(context.Background(), s.ID, &models.UpdateSubscriberRequest{
		Email: strPtr(" TEST@test.com"),
		Name:  strPtr("Johnny"),
	})
	require.NoError(t, err)
	assert.Equal(t, "test@test.com", updated.Email)
	assert.Equal(t, "Johnny", updated.Name)
}

func TestUpdateToOtherSubscribersEmail(t *testing.T) {
	f := newFixture(t)
	f.create(t, "first@example.com", "")
	second := f.create(t, "second@example.com", "")

	_, err := f.svc.UpdateSubscriber(context.Background(), second.ID, &models.UpdateSubscriberRequest{Email: strPtr("FIRST@example.com")})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Email has already been taken"}, verr.FullMessages())

	stored, err := f.repo.FindByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", stored.Email)
}

func TestUpdateInvalidStatusLeavesRecord(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "test@test.com", "John Smith")

	_, err := f.svc.UpdateSubscriber(context.Background(), s.ID, &models.UpdateSubscriberRequest{Status: strPtr("invalid_status")})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Status invalid_status is not a valid status"}, verr.FullMessages())

	stored, err := f.repo.FindByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status)
}

func TestUpdateUnknownID(t *testing.T) {
	f := newFixture(t)
	f.create(t, "test@test.com", "")

	_, err := f.svc.UpdateSubscriber(context.Background(), uuid.New(), &models.UpdateSubscriberRequest{Status: strPtr("inactive")})
	assert.ErrorIs(t, err, models.ErrSubscriberNotFound)
	assert.Equal(t, 1, f.repo.Len())

	page, _, err := f.svc.ListSubscribers(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, page[0].Status)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "a@example.com", "")
	second := f.create(t, "b@example.com", "")
	third := f.create(t, "c@example.com", "")

	page, total, err := f.svc.ListSubscribers(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 3)
	assert.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID}, []uuid.UUID{page[0].ID, page[1].ID, page[2].ID})
}

func TestListPaging(t *testing.T) {
	f := newFixture(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.create(t, email, "")
	}

	page, total, err := f.svc.ListSubscribers(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, int64(3), total)

	page, total, err = f.svc.ListSubscribers(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, int64(3), total)
}

func TestListEdgeCases(t *testing.T) {
	f := newFixture(t)
	f.create(t, "a@example.com", "")

	page, total, err := f.svc.ListSubscribers(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, int64(1), total)

	page, total, err = f.svc.ListSubscribers(context.Background(), 50, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, int64(1), total)

	page, _, err = f.svc.ListSubscribers(context.Background(), -5, -1)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestListPropagatesStoreFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	f.repo.Err = boom

	_, _, err := f.svc.ListSubscribers(context.Background(), 0, 10)
	assert.ErrorIs(t, err, boom)
}
