package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Services are the host collaborators of one invocation.
type Services struct {
	Leads       LeadFetcher
	Environment EnvironmentVariableFetcher
	Journeys    JourneyTriggerer
}

// Report summarises one invocation.
type Report struct {
	Decision      Decision
	OpportunityID uuid.UUID
	Journey       string
	Attempts      []DispatchAttempt
}

func (r Report) Succeeded() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Succeeded() {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	return len(r.Attempts) - r.Succeeded()
}

// Notifier notifies the customer journey about conditional approvals.
type Notifier struct {
	Config Config
	// Services binds the host collaborators to the calling user.
	Services func(callerID uuid.UUID) Services
	Tracer   Tracer
	Now      func() time.Time
}

// NewNotifier wires a Notifier to the Dataverse Web API described by config.
func NewNotifier(config Config, tracer Tracer) *Notifier {
	cache := &EnvironmentVariableCache{TTL: config.Journey.CacheTTL}
	return &Notifier{
		Config: config,
		Tracer: tracer,
		Services: func(callerID uuid.UUID) Services {
			dataverse := DataverseFetcherAndUpdater{Config: config, CallerID: callerID}
			var environment EnvironmentVariableFetcher = dataverse
			if config.Journey.Source == JourneySourceProcess {
				environment = ProcessEnvironment{}
			}
			return Services{
				Leads:       dataverse,
				Environment: cache.Wrap(environment),
				Journeys:    dataverse,
			}
		},
	}
}

// Execute handles one opportunity update. It returns once every recipient
// has been attempted. Recipient failures are reported, not returned; any
// returned error is fatal for the triggering transaction.
func (n *Notifier) Execute(ctx context.Context, ec ExecutionContext) (report Report, err error) {
	ctx, span := startSpan(ctx, "approval-notifier.execute", trace.SpanKindServer,
		attribute.String("correlation.id", ec.CorrelationID),
		attribute.String("message", ec.MessageName),
	)
	defer func() {
		if err != nil {
			safeTrace(n.Tracer, "ConditionalApprovalTriggerCJO: %+v", err)
		}
		endSpan(span, err)
	}()

	if ec.Target == nil {
		return report, nil
	}

	change, err := ec.OpportunityChange(n.Config.Opportunity)
	if err != nil {
		return report, err
	}
	report.OpportunityID = change.Previous.ID
	report.Decision = n.Config.Classifier().Classify(change.NewAmount, change.NewStatus, change.Previous)
	span.SetAttributes(attribute.String("decision", report.Decision.String()))
	if report.Decision == None {
		return report, nil
	}

	services := n.Services(ec.UserID)

	recipients, err := ResolveRecipients(ctx, services.Leads, report.OpportunityID)
	if err != nil {
		return report, fmt.Errorf("failed to resolve recipients %w", err)
	}

	config, err := ResolveJourneyConfig(ctx, services.Environment, n.Config.Journey.ConfigKey)
	if err != nil {
		return report, fmt.Errorf("failed to resolve journey config %w", err)
	}
	report.Journey = config.JourneyName

	safeTrace(n.Tracer, "%s: notifying %d lead(s) of opportunity %s via %s", report.Decision, len(recipients), report.OpportunityID, config.JourneyName)

	dispatcher := Dispatcher{
		Triggerer:   services.Journeys,
		Tracer:      n.Tracer,
		Timeout:     n.Config.Dispatch.Timeout,
		Concurrency: n.Config.Dispatch.Concurrency,
		Now:         n.Now,
	}
	report.Attempts = dispatcher.Dispatch(ctx, config, change.Previous, recipients)

	safeTrace(n.Tracer, "%s: %d succeeded, %d failed", report.Decision, report.Succeeded(), report.Failed())
	return report, nil
}
