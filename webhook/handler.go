package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"github.com/jimmo120313/CJOPlugin/trigger"
)

// Executor runs one opportunity update; *trigger.Notifier implements it.
type Executor interface {
	Execute(ctx context.Context, ec trigger.ExecutionContext) (trigger.Report, error)
}

// Response is the JSON body returned to Dataverse.
type Response struct {
	Decision      string `json:"decision,omitempty"`
	OpportunityID string `json:"opportunityId,omitempty"`
	Journey       string `json:"journey,omitempty"`
	Attempted     int    `json:"attempted"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	Error         string `json:"error,omitempty"`
}

// HandlePayload decodes body and executes it. Undecodable bodies are a 400;
// any other error is a 500 so that Dataverse fails the synchronous step.
func HandlePayload(ctx context.Context, exec Executor, body []byte) (int, Response) {
	ec, err := trigger.ParseExecutionContext(body)
	if err != nil {
		log.Printf("Warning: rejected webhook body %v", err)
		return http.StatusBadRequest, Response{Error: err.Error()}
	}

	report, err := exec.Execute(ctx, ec)
	if err != nil {
		var invalid *trigger.InvalidExecutionContextError
		if errors.As(err, &invalid) {
			return http.StatusBadRequest, Response{Error: err.Error()}
		}
		return http.StatusInternalServerError, Response{Error: err.Error()}
	}

	result := Response{
		Decision:  report.Decision.String(),
		Journey:   report.Journey,
		Attempted: len(report.Attempts),
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
	}
	if report.Decision != trigger.None {
		result.OpportunityID = report.OpportunityID.String()
	}
	return http.StatusOK, result
}

// Authorized reports whether provided matches key. An empty key disables
// authentication.
func Authorized(key string, provided string) bool {
	if key == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(provided)) == 1
}
