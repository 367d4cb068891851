package trigger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// NotApplicable fills the journey's text variables, which this trigger does not use.
const NotApplicable = "N/A"

// Field names of the Customer Journey Orchestration trigger request.
const (
	FieldSignalIngestionTimestamp = "msdynmkt_signalingestiontimestamp"
	FieldSignalTimestamp          = "msdynmkt_signaltimestamp"
	FieldSignalUserAuthID         = "msdynmkt_signaluserauthid"
	FieldProfileID                = "msdynmkt_profileid"
	FieldDateVariable             = "msdynmkt_datevariable"
	FieldOpportunity              = "msdynmkt_opportunity"
	FieldTextVariablePrefix       = "msdynmkt_textvariable"
)

// TriggerPayload is the body of one journey trigger call.
type TriggerPayload struct {
	// Mandatory signal fields
	SignalIngestionTimestamp time.Time
	SignalTimestamp          time.Time
	SignalUserAuthID         string
	ProfileID                string

	// Custom fields
	DateVariable   time.Time
	OpportunityRef uuid.UUID
	TextVariables  [4]string
}

// NewTriggerPayload builds the payload notifying lead about opportunity at now.
func NewTriggerPayload(opportunityID uuid.UUID, leadID uuid.UUID, now time.Time) TriggerPayload {
	return TriggerPayload{
		SignalIngestionTimestamp: now,
		SignalTimestamp:          now,
		SignalUserAuthID:         leadID.String(),
		ProfileID:                leadID.String(),
		DateVariable:             now,
		OpportunityRef:           opportunityID,
		TextVariables:            [4]string{NotApplicable, NotApplicable, NotApplicable, NotApplicable},
	}
}

type entityReference struct {
	ODataType     string `json:"@odata.type"`
	OpportunityID string `json:"opportunityid"`
}

// JSON renders the payload in Web API form. Timestamps are sent as UTC RFC 3339.
func (p TriggerPayload) JSON() (string, error) {
	result := "{}"
	var err error
	set := func(path string, value interface{}) {
		if err == nil {
			result, err = sjson.Set(result, path, value)
		}
	}
	set(FieldSignalIngestionTimestamp, p.SignalIngestionTimestamp.UTC().Format(time.RFC3339))
	set(FieldSignalTimestamp, p.SignalTimestamp.UTC().Format(time.RFC3339))
	set(FieldSignalUserAuthID, p.SignalUserAuthID)
	set(FieldProfileID, p.ProfileID)
	set(FieldDateVariable, p.DateVariable.UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}

	ref, err := json.Marshal(entityReference{
		ODataType:     "Microsoft.Dynamics.CRM.opportunity",
		OpportunityID: p.OpportunityRef.String(),
	})
	if err != nil {
		return "", err
	}
	result, err = sjson.SetRaw(result, FieldOpportunity, string(ref))
	if err != nil {
		return "", err
	}

	for i, v := range p.TextVariables {
		set(fmt.Sprintf("%s%d", FieldTextVariablePrefix, i+1), v)
	}
	return result, err
}
