package trigger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ExecutionContext is the decoded Dataverse RemoteExecutionContext posted by
// a webhook service endpoint. It is immutable after parsing.
type ExecutionContext struct {
	MessageName       string
	PrimaryEntityName string
	PrimaryEntityID   uuid.UUID
	// UserID is the identity downstream calls are made as.
	UserID           uuid.UUID
	InitiatingUserID uuid.UUID
	CorrelationID    string
	Depth            int64
	// Target is nil when the message carries no entity target.
	Target          *Entity
	PreEntityImages map[string]Entity
}

// Entity is a Dataverse entity in data-contract form.
type Entity struct {
	LogicalName string
	ID          uuid.UUID
	attributes  gjson.Result
}

// ParseExecutionContext decodes a webhook body.
func ParseExecutionContext(body []byte) (ExecutionContext, error) {
	var result ExecutionContext
	if !gjson.ValidBytes(body) {
		return result, &InvalidExecutionContextError{Reason: "body is not valid JSON"}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return result, &InvalidExecutionContextError{Reason: "body is not a JSON object"}
	}

	var err error
	result.MessageName = root.Get("MessageName").String()
	result.PrimaryEntityName = root.Get("PrimaryEntityName").String()
	result.CorrelationID = root.Get("CorrelationId").String()
	result.Depth = root.Get("Depth").Int()
	if result.PrimaryEntityID, err = optionalGUID(root, "PrimaryEntityId"); err != nil {
		return result, err
	}
	if result.UserID, err = optionalGUID(root, "UserId"); err != nil {
		return result, err
	}
	if result.InitiatingUserID, err = optionalGUID(root, "InitiatingUserId"); err != nil {
		return result, err
	}

	target := root.Get(`InputParameters.#(key=="Target").value`)
	if isEntity(target) {
		e, err := parseEntity(target)
		if err != nil {
			return result, err
		}
		result.Target = &e
	}

	result.PreEntityImages = make(map[string]Entity)
	for _, image := range root.Get("PreEntityImages").Array() {
		value := image.Get("value")
		if !isEntity(value) {
			continue
		}
		e, err := parseEntity(value)
		if err != nil {
			return result, err
		}
		result.PreEntityImages[image.Get("key").String()] = e
	}

	return result, nil
}

func isEntity(r gjson.Result) bool {
	return r.IsObject() && r.Get("Attributes").IsArray()
}

func parseEntity(r gjson.Result) (Entity, error) {
	id, err := optionalGUID(r, "Id")
	if err != nil {
		return Entity{}, err
	}
	return Entity{
		LogicalName: r.Get("LogicalName").String(),
		ID:          id,
		attributes:  r.Get("Attributes"),
	}, nil
}

func optionalGUID(r gjson.Result, path string) (uuid.UUID, error) {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null || v.String() == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v.String())
	if err != nil {
		return uuid.Nil, &InvalidExecutionContextError{Reason: fmt.Sprintf("%s %q is not a GUID", path, v.String())}
	}
	return id, nil
}

func (e Entity) attribute(name string) gjson.Result {
	return e.attributes.Get(fmt.Sprintf(`#(key==%q).value|@xrmValue`, name))
}

// Contains reports whether the attribute is present, even with a null value.
func (e Entity) Contains(name string) bool {
	return e.attributes.Get(fmt.Sprintf(`#(key==%q)`, name)).Exists()
}

// Money returns a Money (or plain decimal) attribute. Absent and null
// attributes both yield an invalid NullDecimal.
func (e Entity) Money(name string) (decimal.NullDecimal, error) {
	v := e.attribute(name)
	switch v.Type {
	case gjson.Number:
		d, err := decimal.NewFromString(v.Raw)
		if err != nil {
			return decimal.NullDecimal{}, &InvalidExecutionContextError{Reason: fmt.Sprintf("attribute %s: %v", name, err)}
		}
		return decimal.NewNullDecimal(d), nil
	case gjson.String:
		d, err := decimal.NewFromString(v.Str)
		if err != nil {
			return decimal.NullDecimal{}, &InvalidExecutionContextError{Reason: fmt.Sprintf("attribute %s: %v", name, err)}
		}
		return decimal.NewNullDecimal(d), nil
	case gjson.Null:
		return decimal.NullDecimal{}, nil
	default:
		return decimal.NullDecimal{}, &InvalidExecutionContextError{Reason: fmt.Sprintf("attribute %s is not a money value: %s", name, v.Raw)}
	}
}

// OptionSetValue returns an OptionSetValue (or plain integer) attribute, nil when absent or null.
func (e Entity) OptionSetValue(name string) (*int, error) {
	v := e.attribute(name)
	switch v.Type {
	case gjson.Number:
		i := int(v.Int())
		return &i, nil
	case gjson.Null:
		return nil, nil
	default:
		return nil, &InvalidExecutionContextError{Reason: fmt.Sprintf("attribute %s is not an option set value: %s", name, v.Raw)}
	}
}

// OpportunityChange is the classifier input extracted from an update.
type OpportunityChange struct {
	NewAmount decimal.NullDecimal
	NewStatus *int
	Previous  Opportunity
}

// OpportunityChange reads the new values from the target and the previous
// values from the configured pre-image. It must only be called when Target is set.
func (c ExecutionContext) OpportunityChange(settings OpportunitySettings) (OpportunityChange, error) {
	var result OpportunityChange
	if c.Target == nil {
		return result, &InvalidExecutionContextError{Reason: "no Target entity"}
	}
	image, exists := c.PreEntityImages[settings.PreImage]
	if !exists {
		return result, &InvalidExecutionContextError{Reason: fmt.Sprintf("pre-image %q is missing", settings.PreImage)}
	}

	var err error
	if result.NewAmount, err = c.Target.Money(settings.Attributes.ApprovedAmount); err != nil {
		return result, err
	}
	if result.NewStatus, err = c.Target.OptionSetValue(settings.Attributes.ApplicationStatus); err != nil {
		return result, err
	}
	if result.Previous.ApprovedAmount, err = image.Money(settings.Attributes.PreviousApprovedAmount); err != nil {
		return result, err
	}
	if result.Previous.ApplicationStatus, err = image.OptionSetValue(settings.Attributes.ApplicationStatus); err != nil {
		return result, err
	}

	result.Previous.ID = c.PrimaryEntityID
	if result.Previous.ID == uuid.Nil {
		result.Previous.ID = c.Target.ID
	}
	if result.Previous.ID == uuid.Nil {
		result.Previous.ID = image.ID
	}
	if result.Previous.ID == uuid.Nil {
		return result, &InvalidExecutionContextError{Reason: "opportunity id is missing"}
	}
	return result, nil
}
