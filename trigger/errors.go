package trigger

import (
	"fmt"

	"github.com/google/uuid"
)

// BackendQueryError reports that the Dataverse store could not be queried.
// It is fatal for the invocation and is never retried.
type BackendQueryError struct {
	Query string
	Err   error
}

func (e *BackendQueryError) Error() string {
	return fmt.Sprintf("backend query %q failed: %v", e.Query, e.Err)
}

func (e *BackendQueryError) Unwrap() error { return e.Err }

// ConfigNotFoundError reports that no environment variable definition matched the key.
type ConfigNotFoundError struct {
	SchemaName string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("no environment variable definition found for %q", e.SchemaName)
}

// ConfigParseError reports that the resolved environment variable value
// is not a valid journey configuration.
type ConfigParseError struct {
	SchemaName string
	Value      string
	Err        error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("failed to parse environment variable %q: %v", e.SchemaName, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// RecipientDispatchError reports a failed journey trigger for one lead.
// The dispatcher records it and carries on with the remaining leads.
type RecipientDispatchError struct {
	LeadID  uuid.UUID
	Journey string
	Err     error
}

func (e *RecipientDispatchError) Error() string {
	return fmt.Sprintf("failed to trigger journey %q for lead %s: %v", e.Journey, e.LeadID, e.Err)
}

func (e *RecipientDispatchError) Unwrap() error { return e.Err }

// InvalidExecutionContextError reports a webhook body that cannot be decoded
// into an ExecutionContext.
type InvalidExecutionContextError struct {
	Reason string
}

func (e *InvalidExecutionContextError) Error() string {
	return fmt.Sprintf("invalid execution context: %s", e.Reason)
}
