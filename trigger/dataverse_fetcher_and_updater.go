package trigger

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Lead is a lead qualified from the opportunity.
type Lead struct {
	ID       uuid.UUID
	FullName string
}

// EnvironmentVariable is one row of the environment variable definition and
// value join. Value is empty when no per-environment override exists.
type EnvironmentVariable struct {
	SchemaName   string
	DefaultValue string
	Value        string
}

// JourneyTriggerRequest is a single journey trigger call.
type JourneyTriggerRequest struct {
	Journey string
	Payload TriggerPayload
}

type LeadFetcher interface {
	FetchQualifyingLeads(ctx context.Context, opportunityID uuid.UUID, limit int) ([]Lead, error)
}

type EnvironmentVariableFetcher interface {
	FetchEnvironmentVariables(ctx context.Context, schemaName string) ([]EnvironmentVariable, error)
}

type JourneyTriggerer interface {
	SendJourneyTrigger(ctx context.Context, req JourneyTriggerRequest) error
}

// DataverseError is the error body returned by the Dataverse Web API.
type DataverseError struct {
	Detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e DataverseError) wrap(err error) error {
	if e.Detail.Message == "" {
		return err
	}
	return fmt.Errorf("%w (%s: %s)", err, e.Detail.Code, e.Detail.Message)
}

// DataverseFetcherAndUpdater handles all Dataverse Web API operations.
// Calls are made on behalf of CallerID when it is set.
type DataverseFetcherAndUpdater struct {
	Config   Config
	CallerID uuid.UUID
	// Client overrides the default client, mainly for tests.
	Client *http.Client
}

// DataverseAPIBuilder returns a new requests.Builder configured for the Dataverse Web API.
func (d DataverseFetcherAndUpdater) DataverseAPIBuilder() *requests.Builder {
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: HTTPRequestTimeout}
	}
	result := requests.
		URL(d.Config.API.Endpoints.Dataverse).
		Client(client).
		Accept("application/json").
		Header("OData-MaxVersion", "4.0").
		Header("OData-Version", "4.0")
	if d.Config.API.Keys.Dataverse != "" {
		result = result.Bearer(d.Config.API.Keys.Dataverse)
	}
	if d.CallerID != uuid.Nil {
		result = result.Header("MSCRMCallerID", d.CallerID.String())
	}
	if d.Config.API.RecordRequests {
		result = result.Transport(requests.Record(nil, "testdata/.requests/dataverse"))
	}
	return result
}

// FetchQualifyingLeads returns up to limit leads whose qualifying opportunity
// is opportunityID, ordered by full name.
func (d DataverseFetcherAndUpdater) FetchQualifyingLeads(ctx context.Context, opportunityID uuid.UUID, limit int) ([]Lead, error) {
	var body string
	var dvErr DataverseError

	err := d.DataverseAPIBuilder().
		Pathf("/api/data/%s/leads", d.Config.API.Version).
		Param("$select", "fullname").
		Param("$filter", fmt.Sprintf("_qualifyingopportunityid_value eq %s", opportunityID)).
		Param("$orderby", "fullname asc").
		Param("$top", strconv.Itoa(limit)).
		ToString(&body).
		ErrorJSON(&dvErr).
		Fetch(ctx)
	if err != nil {
		return nil, &BackendQueryError{Query: "leads", Err: dvErr.wrap(err)}
	}

	var result []Lead
	for _, v := range gjson.Get(body, "value").Array() {
		id, err := uuid.Parse(v.Get("leadid").String())
		if err != nil {
			return nil, &BackendQueryError{Query: "leads", Err: fmt.Errorf("failed to parse leadid %q %w", v.Get("leadid").String(), err)}
		}
		result = append(result, Lead{ID: id, FullName: v.Get("fullname").String()})
	}
	return result, nil
}

// FetchEnvironmentVariables returns the definition/value rows for schemaName.
func (d DataverseFetcherAndUpdater) FetchEnvironmentVariables(ctx context.Context, schemaName string) ([]EnvironmentVariable, error) {
	var body string
	var dvErr DataverseError

	err := d.DataverseAPIBuilder().
		Pathf("/api/data/%s/environmentvariabledefinitions", d.Config.API.Version).
		Param("$select", "schemaname,defaultvalue").
		Param("$filter", fmt.Sprintf("schemaname eq '%s'", strings.ReplaceAll(schemaName, "'", "''"))).
		Param("$expand", "environmentvariabledefinition_environmentvariablevalue($select=value)").
		ToString(&body).
		ErrorJSON(&dvErr).
		Fetch(ctx)
	if err != nil {
		return nil, &BackendQueryError{Query: "environmentvariabledefinitions", Err: dvErr.wrap(err)}
	}

	var result []EnvironmentVariable
	for _, v := range gjson.Get(body, "value").Array() {
		result = append(result, EnvironmentVariable{
			SchemaName:   v.Get("schemaname").String(),
			DefaultValue: v.Get("defaultvalue").String(),
			Value:        v.Get("environmentvariabledefinition_environmentvariablevalue.0.value").String(),
		})
	}
	return result, nil
}

// SendJourneyTrigger invokes the journey's trigger custom API.
func (d DataverseFetcherAndUpdater) SendJourneyTrigger(ctx context.Context, req JourneyTriggerRequest) error {
	if !journeyNamePattern.MatchString(req.Journey) {
		return fmt.Errorf("invalid journey name %q", req.Journey)
	}
	body, err := req.Payload.JSON()
	if err != nil {
		return fmt.Errorf("failed to build trigger payload %w", err)
	}

	var dvErr DataverseError
	err = d.DataverseAPIBuilder().
		Pathf("/api/data/%s/%s", d.Config.API.Version, req.Journey).
		Post().
		BodyBytes([]byte(body)).
		ContentType("application/json").
		ErrorJSON(&dvErr).
		Fetch(ctx)
	if err != nil {
		log.Printf("Dataverse Error: %+v", dvErr)
		return dvErr.wrap(err)
	}
	return nil
}
