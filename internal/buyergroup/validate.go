package buyergroup

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
	"github.com/sells-group/buyer-group-cli/internal/waterfall/provider"
	"github.com/sells-group/buyer-group-cli/internal/workpool"
)

// Confidence multipliers applied by the validator.
const (
	oneCheckUnavailable   = 0.85
	bothChecksUnavailable = 0.7
	notEmployedPenalty    = 0.5
)

type checkKind int

const (
	checkEmail checkKind = iota
	checkEmployment
)

type check struct {
	member int
	kind   checkKind
}

// Validator verifies member contact data and employment.
type Validator struct {
	email      EmailVerifier
	employment EmploymentChecker
	contacts   ContactResolver
	pool       *workpool.Pool
	breakers   *resilience.Breakers
}

// NewValidator creates a Validator. Any dependency may be nil; a missing
// checker reports its check as unavailable.
func NewValidator(email EmailVerifier, employment EmploymentChecker, contacts ContactResolver, s Settings, breakers *resilience.Breakers) *Validator {
	return &Validator{
		email:      email,
		employment: employment,
		contacts:   contacts,
		pool:       workpool.New(s.VerifyConcurrency),
		breakers:   breakers,
	}
}

// Validate runs the email and employment checks for every member and
// returns the updated members. Members are never removed.
func (v *Validator) Validate(ctx context.Context, company model.Company, members []model.RoleAssignment) ([]model.RoleAssignment, []model.Warning) {
	log := zap.L().With(zap.String("company", company.Name), zap.String("stage", string(model.StageValidating)))
	out := make([]model.RoleAssignment, len(members))
	copy(out, members)
	if len(out) == 0 {
		return out, nil
	}

	checks := make([]check, 0, 2*len(out))
	for i := range out {
		checks = append(checks, check{member: i, kind: checkEmail}, check{member: i, kind: checkEmployment})
	}
	results := workpool.Map(ctx, v.pool, checks, func(ctx context.Context, c check) (string, error) {
		m := out[c.member]
		if c.kind == checkEmail {
			return v.checkEmail(ctx, m.Email), nil
		}
		return v.checkEmployment(ctx, m.Candidate, company), nil
	})

	for n, res := range results {
		status := res.Value
		if res.Err != nil {
			status = model.CheckUnavailable
		}
		m := &out[checks[n].member]
		if checks[n].kind == checkEmail {
			m.EmailCheck = status
		} else {
			m.EmploymentCheck = status
		}
	}

	unavailable := 0
	for i := range out {
		m := &out[i]
		if m.EmailCheck == model.CheckFailed {
			v.replaceEmail(ctx, company, m)
		}
		unavailable += v.settle(m)
	}

	var warnings []model.Warning
	if unavailable > 0 {
		total := 2 * len(out)
		msg := "%d of %d contact checks were unavailable; affected members are unverified"
		if unavailable == total {
			msg = "%d of %d contact checks were unavailable; no member could be verified"
		}
		warnings = append(warnings, warn(model.StageValidating, model.WarnValidationOutage, msg, unavailable, total))
	}
	log.Info("validate: members checked", zap.Int("members", len(out)), zap.Int("unavailable_checks", unavailable))
	return out, warnings
}

// Skip marks every member unverified without calling any provider.
func (v *Validator) Skip(members []model.RoleAssignment) []model.RoleAssignment {
	out := make([]model.RoleAssignment, len(members))
	for i, m := range members {
		m.EmailCheck = model.CheckSkipped
		m.EmploymentCheck = model.CheckSkipped
		m.Verification = model.VerificationUnverified
		out[i] = m
	}
	return out
}

func (v *Validator) checkEmail(ctx context.Context, email string) string {
	if strings.TrimSpace(email) == "" || v.email == nil {
		return model.CheckUnavailable
	}
	status, err := resilience.Call(ctx, breaker(v.breakers, "email"), func(ctx context.Context) (EmailStatus, error) {
		return v.email.VerifyEmail(ctx, email)
	})
	if err != nil {
		zap.L().Debug("validate: email check unavailable", zap.Error(err))
		return model.CheckUnavailable
	}
	switch status {
	case EmailValid:
		return model.CheckPassed
	case EmailInvalid:
		return model.CheckFailed
	default:
		return model.CheckUnavailable
	}
}

func (v *Validator) checkEmployment(ctx context.Context, person model.Candidate, company model.Company) string {
	if v.employment == nil {
		return model.CheckUnavailable
	}
	emp, err := resilience.Call(ctx, breaker(v.breakers, "employment"), func(ctx context.Context) (Employment, error) {
		return v.employment.CheckEmployment(ctx, person, company)
	})
	switch {
	case err != nil:
		zap.L().Debug("validate: employment check unavailable", zap.String("person_id", person.ID), zap.Error(err))
		return model.CheckUnavailable
	case !emp.Known:
		return model.CheckUnavailable
	case emp.Current:
		return model.CheckPassed
	default:
		return model.CheckFailed
	}
}

// replaceEmail looks up an alternate address excluding the failing source
// and re-verifies it. On success m's email and EmailCheck are updated.
func (v *Validator) replaceEmail(ctx context.Context, company model.Company, m *model.RoleAssignment) {
	if v.contacts == nil {
		return
	}
	var exclude []string
	if m.EmailSource != "" {
		exclude = append(exclude, m.EmailSource)
	}
	res := v.contacts.Run(ctx, personIdentifier(m.Candidate, company), nil,
		waterfall.OnlyFields(provider.FieldEmail),
		waterfall.ExcludeSources(exclude...),
		waterfall.RejectValue(provider.FieldEmail, m.Email),
	)
	alt, ok := res.Winner(provider.FieldEmail)
	if !ok {
		return
	}
	if v.checkEmail(ctx, alt.Value) != model.CheckPassed {
		return
	}
	m.Email, m.EmailSource = alt.Value, alt.Source
	m.EmailCheck = model.CheckPassed
	m.ReplacementEmail = true
}

// settle derives the final verification and confidence from the two checks
// and returns the number of unavailable checks.
func (v *Validator) settle(m *model.RoleAssignment) int {
	unavailable := 0
	for _, s := range []string{m.EmailCheck, m.EmploymentCheck} {
		if s == model.CheckUnavailable {
			unavailable++
		}
	}

	switch {
	case m.EmploymentCheck == model.CheckFailed:
		m.Verification = model.VerificationInvalid
		m.ManualReview = true
		m.Confidence *= notEmployedPenalty
	case m.EmailCheck == model.CheckFailed:
		m.Verification = model.VerificationInvalid
		m.ManualReview = true
	case unavailable == 0:
		m.Verification = model.VerificationVerified
	case unavailable == 1:
		m.Verification = model.VerificationUnverified
		m.Confidence *= oneCheckUnavailable
	default:
		m.Verification = model.VerificationUnverified
		m.Confidence *= bothChecksUnavailable
	}
	return unavailable
}
