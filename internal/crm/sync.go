// Package crm pushes buyer-group members to Salesforce as Contacts on the
// matching Account.
package crm

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/pkg/salesforce"
)

// ErrAccountNotFound is returned when no Account matches the company domain.
var ErrAccountNotFound = eris.New("crm: no salesforce account for company domain")

// Default custom Contact fields for role and confidence.
const (
	DefaultRoleField       = "Buyer_Group_Role__c"
	DefaultConfidenceField = "Buyer_Group_Confidence__c"
)

// Fields names the custom Contact fields written by Sync.
type Fields struct {
	Role       string
	Confidence string
}

// Result tallies one sync.
type Result struct {
	AccountID string   `json:"accountId"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed,omitempty"`
}

// Syncer writes buyer groups to Salesforce.
type Syncer struct {
	client salesforce.Client
	fields Fields
}

// NewSyncer returns a Syncer. Empty field names fall back to the defaults.
func NewSyncer(client salesforce.Client, fields Fields) *Syncer {
	if fields.Role == "" {
		fields.Role = DefaultRoleField
	}
	if fields.Confidence == "" {
		fields.Confidence = DefaultConfidenceField
	}
	return &Syncer{client: client, fields: fields}
}

// Sync upserts every member of resp as a Contact. Members whose contact
// data validated as invalid are skipped.
func (s *Syncer) Sync(ctx context.Context, resp *model.Response) (*Result, error) {
	if resp == nil || resp.BuyerGroup == nil {
		return nil, eris.New("crm: response has no buyer group")
	}
	domain := resp.Company.Domain
	if domain == "" {
		return nil, eris.Wrapf(ErrAccountNotFound, "crm: company %q has no domain", resp.Company.Name)
	}

	log := zap.L().With(zap.String("company", resp.Company.Name), zap.String("domain", domain))

	account, err := salesforce.FindAccountByDomain(ctx, s.client, domain)
	if err != nil {
		return nil, eris.Wrap(err, "crm: find account")
	}
	if account == nil {
		return nil, eris.Wrapf(ErrAccountNotFound, "crm: domain %s", domain)
	}

	out := &Result{AccountID: account.ID}
	var contacts []map[string]any
	for _, m := range resp.BuyerGroup.Members {
		if m.Verification == model.VerificationInvalid {
			out.Skipped++
			continue
		}
		if _, last := SplitName(m.Person.Name); last == "" {
			log.Warn("crm: member has no name, skipping", zap.String("person_id", m.Person.ID))
			out.Skipped++
			continue
		}
		contacts = append(contacts, s.contactFields(m))
	}

	res, err := salesforce.UpsertContacts(ctx, s.client, account.ID, contacts)
	if res != nil {
		out.Created, out.Updated, out.Failed = res.Created, res.Updated, res.Failed
	}
	if err != nil {
		return out, eris.Wrap(err, "crm: upsert contacts")
	}

	log.Info("crm: buyer group synced",
		zap.String("account_id", account.ID),
		zap.Int("created", out.Created),
		zap.Int("updated", out.Updated),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", len(out.Failed)),
	)
	return out, nil
}

func (s *Syncer) contactFields(m model.Member) map[string]any {
	first, last := SplitName(m.Person.Name)
	fields := map[string]any{
		"FirstName":         first,
		"LastName":          last,
		s.fields.Role:       string(m.Role),
		s.fields.Confidence: math.Round(m.Confidence*100) / 100,
	}
	if m.Person.Title != "" {
		fields["Title"] = m.Person.Title
	}
	if m.Contact.Email != "" {
		fields["Email"] = m.Contact.Email
	}
	if m.Contact.Phone != "" {
		fields["Phone"] = m.Contact.Phone
	}
	return fields
}

// SplitName splits a display name at its last space. Salesforce requires
// LastName, so a single-word name is returned as the last name.
func SplitName(name string) (first, last string) {
	name = strings.Join(strings.Fields(name), " ")
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
