package journal

import (
	"context"
	"log"
	"testing"
	"time"

	"payment-reconciler/internal/journal"
	"payment-reconciler/tests/testhelpers"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type AttemptRepositoryTestSuite struct {
	suite.Suite
	pgContainer *testhelpers.PostgresContainer
	pool        *pgxpool.Pool
	sut         *journal.AttemptRepository
	ctx         context.Context
}

func (s *AttemptRepositoryTestSuite) SetupSuite() {
	time.Local = time.UTC

	s.ctx = context.Background()
	pgContainer, err := testhelpers.CreatePostgresContainer(s.ctx)
	if err != nil {
		log.Fatal(err)
	}
	s.pgContainer = pgContainer

	journal.RunMigrations(pgContainer.ConnectionString, "../../../migrations")

	pool, err := journal.GetPool(pgContainer.ConnectionString)
	if err != nil {
		log.Fatal(err)
	}

	s.pool = pool
	s.sut = journal.NewAttemptRepository(pool)
}

func (s *AttemptRepositoryTestSuite) TearDownSuite() {
	s.pool.Close()

	if err := s.pgContainer.Terminate(s.ctx); err != nil {
		log.Fatalf("error terminating postgres container: %s", err)
	}
}

func (s *AttemptRepositoryTestSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "DELETE FROM payment_attempt")
	if err != nil {
		log.Fatalf("error truncating payment_attempt table: %s", err)
	}
}

func newEntity(bookingID int64) *journal.AttemptEntity {
	return &journal.AttemptEntity{
		ID:        uuid.New(),
		BookingID: bookingID,
		Phone:     "254712****78",
		Amount:    500,
	}
}

func (s *AttemptRepositoryTestSuite) TestCreateAndGetByID() {
	t := s.T()

	entity := newEntity(42)
	err := s.sut.Create(s.ctx, entity)
	assert.NoError(t, err)

	stored, err := s.sut.GetByID(s.ctx, entity.ID)
	assert.NoError(t, err)
	assert.Equal(t, entity.ID, stored.ID)
	assert.Equal(t, int64(42), stored.BookingID)
	assert.Equal(t, "254712****78", stored.Phone)
	assert.Equal(t, 500.0, stored.Amount)
	assert.Nil(t, stored.Outcome)
	assert.WithinDuration(t, time.Now(), stored.CreatedAt, 5*time.Second)
}

func (s *AttemptRepositoryTestSuite) TestGetByID_NotFound() {
	t := s.T()

	_, err := s.sut.GetByID(s.ctx, uuid.New())
	assert.True(t, errors.Is(err, journal.ErrAttemptNotFound))
}

func (s *AttemptRepositoryTestSuite) TestUpdate() {
	t := s.T()

	entity := newEntity(42)
	err := s.sut.Create(s.ctx, entity)
	assert.NoError(t, err)

	paymentID := int64(7)
	gatewayRef := "ws_CO_abc"
	lastStatus := "completed"
	outcome := "completed"
	decision := "confirmed"
	now := time.Now()

	entity.PaymentID = &paymentID
	entity.GatewayRef = &gatewayRef
	entity.LastStatus = &lastStatus
	entity.PollAttempts = 3
	entity.Outcome = &outcome
	entity.Decision = &decision
	entity.DecidedAt = &now

	err = s.sut.Update(s.ctx, entity)
	assert.NoError(t, err)

	stored, err := s.sut.GetByID(s.ctx, entity.ID)
	assert.NoError(t, err)
	assert.Equal(t, paymentID, *stored.PaymentID)
	assert.Equal(t, gatewayRef, *stored.GatewayRef)
	assert.Equal(t, lastStatus, *stored.LastStatus)
	assert.Equal(t, 3, stored.PollAttempts)
	assert.Equal(t, outcome, *stored.Outcome)
	assert.Equal(t, decision, *stored.Decision)
	assert.NotNil(t, stored.DecidedAt)
}

func (s *AttemptRepositoryTestSuite) TestListByBooking() {
	t := s.T()

	first := newEntity(42)
	second := newEntity(42)
	other := newEntity(43)

	assert.NoError(t, s.sut.Create(s.ctx, first))
	assert.NoError(t, s.sut.Create(s.ctx, second))
	assert.NoError(t, s.sut.Create(s.ctx, other))

	attempts, err := s.sut.ListByBooking(s.ctx, 42)
	assert.NoError(t, err)
	assert.Len(t, attempts, 2)
	for _, attempt := range attempts {
		assert.Equal(t, int64(42), attempt.BookingID)
	}
}

func TestAttemptRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(AttemptRepositoryTestSuite))
}
