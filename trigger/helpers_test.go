package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	gosync "sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	testOpportunityID = uuid.MustParse("0b8e2f4a-1d3c-4e5f-8a9b-7c6d5e4f3a2b")
	testUserID        = uuid.MustParse("6f1f8d3e-5c2b-4a7e-9f3d-1a2b3c4d5e6f")
)

func testConfig(t *testing.T) Config {
	t.Helper()
	env := map[string]string{
		"DATAVERSE_URL":   "https://contoso.crm.dynamics.com",
		"DATAVERSE_TOKEN": "token",
	}
	config, err := loadConfig("", func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	return config
}

func readTestExecutionContext(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/execution_context.json")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// executionContextJSON renders a minimal webhook body with a target carrying
// targetAttrs and an "opportunity" pre-image carrying imageAttrs.
// Attribute values are raw JSON.
func executionContextJSON(targetAttrs map[string]string, imageAttrs map[string]string) []byte {
	attrs := func(m map[string]string) string {
		s := ""
		for k, v := range m {
			if s != "" {
				s += ","
			}
			s += fmt.Sprintf(`{"key":%q,"value":%s}`, k, v)
		}
		return "[" + s + "]"
	}
	return []byte(fmt.Sprintf(`{
		"MessageName": "Update",
		"PrimaryEntityName": "opportunity",
		"PrimaryEntityId": %q,
		"UserId": %q,
		"InputParameters": [{"key":"Target","value":{"Attributes":%s,"Id":%q,"LogicalName":"opportunity"}}],
		"PreEntityImages": [{"key":"opportunity","value":{"Attributes":%s,"Id":%q,"LogicalName":"opportunity"}}]
	}`, testOpportunityID, testUserID, attrs(targetAttrs), testOpportunityID, attrs(imageAttrs), testOpportunityID))
}

func money(v string) string {
	return fmt.Sprintf(`{"__type":"Money:http://schemas.microsoft.com/xrm/2011/Contracts","Value":%s}`, v)
}

func optionSet(v int) string {
	return fmt.Sprintf(`{"__type":"OptionSetValue:http://schemas.microsoft.com/xrm/2011/Contracts","Value":%d}`, v)
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func status(i int) *int {
	return &i
}

type fakeLeads struct {
	leads []Lead
	err   error
	calls int
}

func (f *fakeLeads) FetchQualifyingLeads(ctx context.Context, opportunityID uuid.UUID, limit int) ([]Lead, error) {
	f.calls++
	return f.leads, f.err
}

type fakeEnvironment struct {
	rows  []EnvironmentVariable
	err   error
	calls int
}

func (f *fakeEnvironment) FetchEnvironmentVariables(ctx context.Context, schemaName string) ([]EnvironmentVariable, error) {
	f.calls++
	return f.rows, f.err
}

// fakeJourneys records every trigger request and fails for the leads in failFor.
type fakeJourneys struct {
	mu       gosync.Mutex
	requests []JourneyTriggerRequest
	failFor  map[uuid.UUID]bool
	panicFor map[uuid.UUID]bool
}

func (f *fakeJourneys) SendJourneyTrigger(ctx context.Context, req JourneyTriggerRequest) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	id := uuid.MustParse(req.Payload.ProfileID)
	if f.panicFor[id] {
		panic("boom")
	}
	if f.failFor[id] {
		return errors.New("service unavailable")
	}
	return nil
}

func testLeads(names ...string) []Lead {
	var result []Lead
	for i, name := range names {
		result = append(result, Lead{
			ID:       uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012d", i+1)),
			FullName: name,
		})
	}
	return result
}
