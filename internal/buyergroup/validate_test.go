package buyergroup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
)

var acme = model.Company{ID: "c-1", Name: "Acme Corp", Domain: "acme.com"}

func member(id, name, email string, confidence float64) model.RoleAssignment {
	c := person(id, name, "VP of Engineering")
	c.Email, c.EmailSource = email, "coresignal"
	return model.RoleAssignment{ScoredCandidate: scored(c, confidence), Role: model.RoleDecisionMaker}
}

func TestValidate_AllChecksPass(t *testing.T) {
	v := NewValidator(&fakeEmail{}, &fakeEmployment{}, nil, testSettings(), nil)

	got, warnings := v.Validate(context.Background(), acme, []model.RoleAssignment{member("p1", "Jane Doe", "jane@acme.com", 0.8)})

	require.Len(t, got, 1)
	assert.Empty(t, warnings)
	assert.Equal(t, model.VerificationVerified, got[0].Verification)
	assert.Equal(t, model.CheckPassed, got[0].EmailCheck)
	assert.Equal(t, model.CheckPassed, got[0].EmploymentCheck)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
}

func TestValidate_TotalOutageKeepsMembersUnverified(t *testing.T) {
	outage := errors.New("connection reset by peer")
	v := NewValidator(&fakeEmail{err: outage}, &fakeEmployment{err: outage}, nil, testSettings(), nil)

	in := []model.RoleAssignment{
		member("p1", "Jane Doe", "jane@acme.com", 0.8),
		member("p2", "Sam Roe", "sam@acme.com", 0.6),
		member("p3", "Ann Lee", "", 0.5),
	}
	got, warnings := v.Validate(context.Background(), acme, in)

	require.Len(t, got, 3, "members are never removed")
	for i, m := range got {
		assert.Equal(t, model.VerificationUnverified, m.Verification, m.ID)
		assert.Equal(t, model.CheckUnavailable, m.EmailCheck)
		assert.Equal(t, model.CheckUnavailable, m.EmploymentCheck)
		assert.InDelta(t, in[i].Confidence*bothChecksUnavailable, m.Confidence, 1e-9)
		assert.False(t, m.ManualReview)
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnValidationOutage, warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "6 of 6")
}

func TestValidate_NilCheckersAreUnavailable(t *testing.T) {
	v := NewValidator(nil, nil, nil, testSettings(), nil)

	got, warnings := v.Validate(context.Background(), acme, []model.RoleAssignment{member("p1", "Jane Doe", "jane@acme.com", 1)})

	assert.Equal(t, model.VerificationUnverified, got[0].Verification)
	assert.Len(t, warnings, 1)
}

func TestValidate_OneCheckUnavailable(t *testing.T) {
	v := NewValidator(&fakeEmail{}, &fakeEmployment{err: errors.New("i/o timeout")}, nil, testSettings(), nil)

	got, _ := v.Validate(context.Background(), acme, []model.RoleAssignment{member("p1", "Jane Doe", "jane@acme.com", 0.8)})

	assert.Equal(t, model.VerificationUnverified, got[0].Verification)
	assert.InDelta(t, 0.8*oneCheckUnavailable, got[0].Confidence, 1e-9)
}

func TestValidate_NoLongerEmployed(t *testing.T) {
	v := NewValidator(&fakeEmail{}, &fakeEmployment{notCurrent: map[string]bool{"p1": true}}, nil, testSettings(), nil)

	got, _ := v.Validate(context.Background(), acme, []model.RoleAssignment{member("p1", "Jane Doe", "jane@acme.com", 0.8)})

	assert.Equal(t, model.VerificationInvalid, got[0].Verification)
	assert.True(t, got[0].ManualReview)
	assert.InDelta(t, 0.8*notEmployedPenalty, got[0].Confidence, 1e-9)
}

func TestValidate_ReplacesUndeliverableEmail(t *testing.T) {
	email := &fakeEmail{statuses: map[string]EmailStatus{"j.doe@acme.com": EmailInvalid}}
	contacts := &fakeContacts{emails: map[string]waterfall.SourceValue{
		"Jane Doe": {Value: "jane.doe@acme.com", Source: "hunter"},
	}}
	v := NewValidator(email, &fakeEmployment{}, contacts, testSettings(), nil)

	got, warnings := v.Validate(context.Background(), acme, []model.RoleAssignment{member("p1", "Jane Doe", "j.doe@acme.com", 0.8)})

	assert.Empty(t, warnings)
	m := got[0]
	assert.Equal(t, "jane.doe@acme.com", m.Email)
	assert.Equal(t, "hunter", m.EmailSource)
	assert.True(t, m.ReplacementEmail)
	assert.Equal(t, model.VerificationVerified, m.Verification)
	assert.Equal(t, 1, contacts.calls)
	assert.Contains(t, email.calls, "jane.doe@acme.com")
}

func TestValidate_UndeliverableWithoutReplacement(t *testing.T) {
	email := &fakeEmail{statuses: map[string]EmailStatus{"j.doe@acme.com": EmailInvalid}}
	v := NewValidator(email, &fakeEmployment{}, &fakeContacts{}, testSettings(), nil)

	got, _ := v.Validate(context.Background(), acme, []model.RoleAssignment{member("p1", "Jane Doe", "j.doe@acme.com", 0.8)})

	assert.Equal(t, model.VerificationInvalid, got[0].Verification)
	assert.True(t, got[0].ManualReview)
	assert.Equal(t, "j.doe@acme.com", got[0].Email)
}

func TestValidator_Skip(t *testing.T) {
	v := NewValidator(nil, nil, nil, testSettings(), nil)
	got := v.Skip([]model.RoleAssignment{member("p1", "Jane Doe", "jane@acme.com", 0.8)})

	assert.Equal(t, model.CheckSkipped, got[0].EmailCheck)
	assert.Equal(t, model.VerificationUnverified, got[0].Verification)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
}
