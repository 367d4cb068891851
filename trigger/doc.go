package trigger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// FieldDocRow represents a single row in the trigger field documentation.
type FieldDocRow struct {
	FieldName   string // Name without the msdynmkt_ prefix (e.g., "profileid")
	FieldID     string // Full request parameter name (e.g., "msdynmkt_profileid")
	IsMandatory bool   // Whether the journey trigger requires the field
	FieldType   string // Custom API parameter type (Text, Date and time, Entity reference)
	Source      string // Where the value comes from
	Notes       string
}

// FieldDocumentation describes the trigger request sent for a journey.
type FieldDocumentation struct {
	Journey string
	Rows    []FieldDocRow
}

// GenerateFieldDocumentation documents the trigger request fields for journey.
// Rows are sorted mandatory fields first, then by field name.
func GenerateFieldDocumentation(config Config, journey string) FieldDocumentation {
	doc := FieldDocumentation{Journey: journey}

	add := func(fieldid string, mandatory bool, fieldtype string, source string, notes ...string) {
		doc.Rows = append(doc.Rows, FieldDocRow{
			FieldName:   extractFieldName(fieldid),
			FieldID:     fieldid,
			IsMandatory: mandatory,
			FieldType:   fieldtype,
			Source:      source,
			Notes:       strings.Join(notes, " | "),
		})
	}

	add(FieldSignalIngestionTimestamp, true, "Date and time", "(computed)", "Time of dispatch (UTC)")
	add(FieldSignalTimestamp, true, "Date and time", "(computed)", "Time of dispatch (UTC)")
	add(FieldSignalUserAuthID, true, "Text", "lead.leadid")
	add(FieldProfileID, true, "Text", "lead.leadid")
	add(FieldDateVariable, false, "Date and time", "(computed)", "Time of dispatch (UTC)")
	add(FieldOpportunity, false, "Entity reference", "opportunity.opportunityid",
		fmt.Sprintf("Sent when %s becomes %d", config.Opportunity.Attributes.ApplicationStatus, config.Opportunity.ConditionallyApprovedStatus))
	for i := 1; i <= 4; i++ {
		add(fmt.Sprintf("%s%d", FieldTextVariablePrefix, i), false, "Text", fmt.Sprintf("`%s`", NotApplicable), "Static placeholder")
	}

	sort.SliceStable(doc.Rows, func(i, j int) bool {
		if doc.Rows[i].IsMandatory != doc.Rows[j].IsMandatory {
			return doc.Rows[i].IsMandatory
		}
		return doc.Rows[i].FieldName < doc.Rows[j].FieldName
	})

	return doc
}

// extractFieldName strips the solution prefix from a parameter name.
// e.g., "msdynmkt_profileid" -> "profileid"
func extractFieldName(fieldid string) string {
	if i := strings.Index(fieldid, "_"); i >= 0 {
		return fieldid[i+1:]
	}
	return fieldid
}

// FormatCSV formats the field documentation as CSV.
func (d FieldDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# Journey: %s", d.Journey)}); err != nil {
		return "", err
	}
	if err := writer.Write([]string{"Field Name", "Parameter", "Mandatory", "Type", "Source", "Notes"}); err != nil {
		return "", err
	}
	for _, row := range d.Rows {
		mandatory := ""
		if row.IsMandatory {
			mandatory = "yes"
		}
		if err := writer.Write([]string{row.FieldName, row.FieldID, mandatory, row.FieldType, row.Source, row.Notes}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
