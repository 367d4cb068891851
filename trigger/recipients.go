package trigger

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// MaxRecipients caps the number of leads notified per opportunity update.
const MaxRecipients = 10

// ResolveRecipients returns the leads qualified from opportunityID, at most
// MaxRecipients, ascending by full name. Ties are broken by id so the result
// is deterministic for identical input.
func ResolveRecipients(ctx context.Context, fetcher LeadFetcher, opportunityID uuid.UUID) ([]Lead, error) {
	leads, err := fetcher.FetchQualifyingLeads(ctx, opportunityID, MaxRecipients)
	if err != nil {
		var bqErr *BackendQueryError
		if !errors.As(err, &bqErr) {
			err = &BackendQueryError{Query: "leads", Err: err}
		}
		return nil, err
	}

	result := slices.Clone(leads)
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if la, lb := strings.ToLower(a.FullName), strings.ToLower(b.FullName); la != lb {
			return la < lb
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.ID.String() < b.ID.String()
	})
	if len(result) > MaxRecipients {
		result = result[:MaxRecipients]
	}
	return result, nil
}
