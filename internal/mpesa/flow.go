package mpesa

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"payment-reconciler/internal/event"
	"payment-reconciler/internal/journal"
	"payment-reconciler/internal/logcontext"
	"payment-reconciler/internal/poller"
	"payment-reconciler/internal/push"
	"payment-reconciler/internal/reconcile"
	"payment-reconciler/internal/resolver"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const defaultParallelism = 100

// AttemptJournal records attempt lifecycle transitions.
type AttemptJournal interface {
	Create(ctx context.Context, entity *journal.AttemptEntity) error
	Update(ctx context.Context, entity *journal.AttemptEntity) error
	GetByID(ctx context.Context, id uuid.UUID) (*journal.AttemptEntity, error)
}

// OutcomePublisher emits the finished-attempt event, best effort.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome event.Outcome)
}

type StartRequest struct {
	BookingID   int64   `json:"booking_id"`
	Amount      float64 `json:"amount"`
	PhoneNumber string  `json:"phone_number"`
}

// ErrInvalidRequest covers missing booking id or non-positive amount.
var ErrInvalidRequest = errors.New("booking_id and a positive amount are required")

// Flow runs one payment attempt end to end: resolve the payment record,
// initiate the push, poll to a terminal state, reconcile the booking. Steps
// are strictly sequential within an attempt; attempts run concurrently up to
// the configured parallelism.
type Flow struct {
	resolver  *resolver.Resolver
	initiator *push.Initiator
	poller    *poller.Poller
	engine    *reconcile.Engine
	journal   AttemptJournal
	publisher OutcomePublisher
	logger    *slog.Logger
	sem       chan struct{}

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

func NewFlow(res *resolver.Resolver, initiator *push.Initiator, p *poller.Poller, engine *reconcile.Engine,
	attempts AttemptJournal, publisher OutcomePublisher, parallelism int, logger *slog.Logger) *Flow {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Flow{
		resolver:  res,
		initiator: initiator,
		poller:    p,
		engine:    engine,
		journal:   attempts,
		publisher: publisher,
		logger:    logger,
		sem:       make(chan struct{}, parallelism),
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates the request, journals a new attempt, and runs it in the
// background. The returned id can be used to inspect or cancel the attempt.
func (f *Flow) Start(ctx context.Context, req StartRequest) (uuid.UUID, error) {
	if req.BookingID <= 0 || req.Amount <= 0 {
		return uuid.Nil, ErrInvalidRequest
	}
	if err := push.ValidatePhone(req.PhoneNumber); err != nil {
		return uuid.Nil, err
	}

	entity := &journal.AttemptEntity{
		ID:        uuid.New(),
		BookingID: req.BookingID,
		Phone:     maskPhone(req.PhoneNumber),
		Amount:    req.Amount,
	}
	if err := f.journal.Create(ctx, entity); err != nil {
		return uuid.Nil, err
	}

	// The attempt outlives the HTTP request that started it.
	runCtx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	f.running[entity.ID] = cancel
	f.mu.Unlock()

	f.sem <- struct{}{}
	go func() {
		defer func() { <-f.sem }()
		defer f.unregister(entity.ID)
		f.run(runCtx, entity, req)
	}()

	return entity.ID, nil
}

// Cancel signals an in-flight attempt to stop at its next boundary. Returns
// false when the attempt is not running.
func (f *Flow) Cancel(id uuid.UUID) bool {
	f.mu.Lock()
	cancel, ok := f.running[id]
	f.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (f *Flow) unregister(id uuid.UUID) {
	f.mu.Lock()
	if cancel, ok := f.running[id]; ok {
		cancel()
		delete(f.running, id)
	}
	f.mu.Unlock()
}

func (f *Flow) run(ctx context.Context, entity *journal.AttemptEntity, req StartRequest) {
	ctx = logcontext.AppendCtx(ctx,
		slog.String("attemptId", entity.ID.String()),
		slog.Int64("bookingId", req.BookingID),
	)
	f.logger.InfoContext(ctx, "Starting payment attempt")

	paymentID, err := f.resolver.ResolveOrCreate(ctx, req.BookingID, req.Amount)
	if err != nil {
		f.abort(ctx, entity, err)
		return
	}
	entity.PaymentID = &paymentID
	f.save(ctx, entity)

	gatewayRef, err := f.initiator.Initiate(ctx, req.PhoneNumber, req.Amount, paymentID)
	if err != nil {
		f.abort(ctx, entity, err)
		return
	}
	entity.GatewayRef = &gatewayRef
	f.save(ctx, entity)

	result, err := f.poller.PollUntilTerminal(ctx, paymentID)
	if err != nil {
		// Cancellation mid-flight; no decision is made and the booking stays
		// untouched.
		f.logger.InfoContext(ctx, "Payment attempt cancelled", "error", err)
		outcome := journal.OutcomeCancelled
		entity.Outcome = &outcome
		f.finish(ctx, entity)
		return
	}

	outcome := string(result.Outcome)
	entity.Outcome = &outcome
	entity.PollAttempts = result.Attempts
	if result.LastStatus != "" {
		entity.LastStatus = &result.LastStatus
	}

	if result.Outcome == poller.OutcomeCompleted {
		decision, err := f.engine.DecideAndApply(ctx, req.BookingID)
		if err != nil {
			f.logger.ErrorContext(ctx, "Reconciliation failed", "error", err)
			errText := err.Error()
			entity.Error = &errText
		} else {
			d := string(decision.Decision)
			now := time.Now()
			entity.Decision = &d
			entity.DecidedAt = &now
			f.publishOutcome(ctx, entity, decision.Receipt)
			f.save(ctx, entity)
			f.logger.InfoContext(ctx, "Payment attempt finished", "outcome", outcome, "decision", d)
			return
		}
	}

	f.finish(ctx, entity)
}

func (f *Flow) abort(ctx context.Context, entity *journal.AttemptEntity, cause error) {
	f.logger.ErrorContext(ctx, "Payment attempt aborted", "error", cause)
	outcome := journal.OutcomeAborted
	errText := cause.Error()
	entity.Outcome = &outcome
	entity.Error = &errText
	f.finish(ctx, entity)
}

func (f *Flow) finish(ctx context.Context, entity *journal.AttemptEntity) {
	f.publishOutcome(ctx, entity, "")
	f.save(ctx, entity)
	outcome := ""
	if entity.Outcome != nil {
		outcome = *entity.Outcome
	}
	f.logger.InfoContext(ctx, "Payment attempt finished", "outcome", outcome)
}

// save journals the current attempt state. Journal failures are logged and
// swallowed; they never change the attempt's course. WithoutCancel so a
// cancelled attempt still gets its final row.
func (f *Flow) save(ctx context.Context, entity *journal.AttemptEntity) {
	if err := f.journal.Update(context.WithoutCancel(ctx), entity); err != nil {
		f.logger.ErrorContext(ctx, "Error journaling attempt state", "error", err)
	}
}

func (f *Flow) publishOutcome(ctx context.Context, entity *journal.AttemptEntity, receipt string) {
	if f.publisher == nil {
		return
	}
	outcome := event.Outcome{
		AttemptID:  entity.ID,
		BookingID:  entity.BookingID,
		Outcome:    stringOrEmpty(entity.Outcome),
		Decision:   stringOrEmpty(entity.Decision),
		Receipt:    receipt,
		OccurredAt: time.Now(),
	}
	if entity.PaymentID != nil {
		outcome.PaymentID = *entity.PaymentID
	}
	f.publisher.PublishOutcome(context.WithoutCancel(ctx), outcome)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func maskPhone(phone string) string {
	if len(phone) < 8 {
		return phone
	}
	return phone[:6] + strings.Repeat("*", len(phone)-8) + phone[len(phone)-2:]
}
