package trigger

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DispatchAttempt is the outcome of triggering the journey for one lead.
type DispatchAttempt struct {
	ID       ulid.ULID
	LeadID   uuid.UUID
	Err      error
	Duration time.Duration
}

func (a DispatchAttempt) Succeeded() bool {
	return a.Err == nil
}

// Dispatcher triggers a journey once per recipient. A failure for one
// recipient is recorded and never stops the others; nothing is retried.
type Dispatcher struct {
	Triggerer JourneyTriggerer
	Tracer    Tracer
	// Timeout bounds each trigger call; DefaultDispatchTimeout when zero.
	Timeout time.Duration
	// Concurrency is the number of parallel trigger calls; sequential when below 2.
	Concurrency int
	Now         func() time.Time
}

// Dispatch blocks until every recipient has been attempted. Attempts are
// returned in recipient order.
func (d Dispatcher) Dispatch(ctx context.Context, config JourneyConfig, opportunity Opportunity, recipients []Lead) []DispatchAttempt {
	attempts := make([]DispatchAttempt, len(recipients))

	var g errgroup.Group
	g.SetLimit(max(1, d.Concurrency))
	for i, lead := range recipients {
		g.Go(func() error {
			attempts[i] = d.dispatchOne(ctx, config, opportunity, lead)
			return nil
		})
	}
	_ = g.Wait()

	return attempts
}

func (d Dispatcher) dispatchOne(ctx context.Context, config JourneyConfig, opportunity Opportunity, lead Lead) (attempt DispatchAttempt) {
	start := time.Now()
	now := start
	if d.Now != nil {
		now = d.Now()
	}
	attempt = DispatchAttempt{
		ID:     ulid.MustNew(ulid.Timestamp(start), rand.Reader),
		LeadID: lead.ID,
	}

	ctx, span := startSpan(ctx, "journey.trigger", trace.SpanKindClient,
		attribute.String("journey", config.JourneyName),
		attribute.String("lead.id", lead.ID.String()),
		attribute.String("opportunity.id", opportunity.ID.String()),
	)
	defer func() {
		if r := recover(); r != nil {
			attempt.Err = &RecipientDispatchError{LeadID: lead.ID, Journey: config.JourneyName, Err: fmt.Errorf("panic: %v", r)}
		}
		attempt.Duration = time.Since(start)
		if attempt.Err != nil {
			safeTrace(d.Tracer, "ApprovalTriggerError: %v", attempt.Err)
		}
		endSpan(span, attempt.Err)
	}()

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.Triggerer.SendJourneyTrigger(ctx, JourneyTriggerRequest{
		Journey: config.JourneyName,
		Payload: NewTriggerPayload(opportunity.ID, lead.ID, now),
	})
	if err != nil {
		attempt.Err = &RecipientDispatchError{LeadID: lead.ID, Journey: config.JourneyName, Err: err}
	}
	return attempt
}
