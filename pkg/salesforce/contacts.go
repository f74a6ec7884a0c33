package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// UpsertResult tallies a contact upsert.
type UpsertResult struct {
	Created int
	Updated int
	Failed  []string
}

// UpsertContacts creates or updates Contacts under accountID. Existing
// contacts are matched by case-insensitive email, then by full name.
// Fields is written as-is; AccountId is set on inserts.
func UpsertContacts(ctx context.Context, c Client, accountID string, contacts []map[string]any) (*UpsertResult, error) {
	if accountID == "" {
		return nil, eris.New("sf: account id is required for contact")
	}
	if len(contacts) == 0 {
		return &UpsertResult{}, nil
	}

	existing, err := FindContactsByAccountID(ctx, c, accountID)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]string, len(existing))
	byName := make(map[string]string, len(existing))
	for _, e := range existing {
		if e.Email != "" {
			byEmail[strings.ToLower(e.Email)] = e.ID
		}
		byName[nameKey(e.FirstName, e.LastName)] = e.ID
	}

	var inserts []map[string]any
	var updates []CollectionRecord
	for _, fields := range contacts {
		id := ""
		if email, _ := fields["Email"].(string); email != "" {
			id = byEmail[strings.ToLower(email)]
		}
		if id == "" {
			first, _ := fields["FirstName"].(string)
			last, _ := fields["LastName"].(string)
			id = byName[nameKey(first, last)]
		}
		if id != "" {
			updates = append(updates, CollectionRecord{ID: id, Fields: fields})
			continue
		}
		rec := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			rec[k] = v
		}
		rec["AccountId"] = accountID
		inserts = append(inserts, rec)
	}

	out := &UpsertResult{}
	for start := 0; start < len(inserts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(inserts))
		results, err := c.InsertCollection(ctx, "Contact", inserts[start:end])
		if err != nil {
			return out, eris.Wrap(err, fmt.Sprintf("sf: insert contacts batch %d-%d", start, end))
		}
		tally(out, results, &out.Created)
	}
	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		results, err := c.UpdateCollection(ctx, "Contact", updates[start:end])
		if err != nil {
			return out, eris.Wrap(err, fmt.Sprintf("sf: update contacts batch %d-%d", start, end))
		}
		tally(out, results, &out.Updated)
	}
	return out, nil
}

func tally(out *UpsertResult, results []CollectionResult, ok *int) {
	for _, r := range results {
		if r.Success {
			*ok++
			continue
		}
		out.Failed = append(out.Failed, strings.Join(r.Errors, "; "))
	}
}

func nameKey(first, last string) string {
	return strings.ToLower(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
