package provider

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/pkg/hunter"
	"github.com/sells-group/buyer-group-cli/pkg/lusha"
)

// mockProvider implements Provider for testing.
type mockProvider struct {
	name            string
	supportedFields []string
}

func (m *mockProvider) Name() string                    { return m.name }
func (m *mockProvider) SupportedFields() []string       { return m.supportedFields }
func (m *mockProvider) CostPerQuery(_ []string) float64 { return 0.10 }
func (m *mockProvider) CanProvide(fieldKey string) bool { return supports(m.supportedFields, fieldKey) }
func (m *mockProvider) Query(_ context.Context, _ PersonIdentifier, _ []string) (*QueryResult, error) {
	return &QueryResult{Provider: m.name}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&mockProvider{name: "lusha"}, nil, &mockProvider{name: "hunter"})
	assert.Equal(t, []string{"hunter", "lusha"}, r.List())
	assert.NotNil(t, r.Get("hunter"))
	assert.Nil(t, r.Get("clearbit"))

	var nilReg *Registry
	assert.Nil(t, nilReg.Get("hunter"))
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(&mockProvider{name: string(rune('a' + i))})
			_ = r.Get("a")
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.List(), 20)
}

type fakeHunter struct {
	res *hunter.EmailResult
	err error
	got hunter.FindEmailRequest
}

func (f *fakeHunter) FindEmail(_ context.Context, req hunter.FindEmailRequest) (*hunter.EmailResult, error) {
	f.got = req
	return f.res, f.err
}

func TestHunter_Query(t *testing.T) {
	fh := &fakeHunter{res: &hunter.EmailResult{Email: "dana@acme.com", Score: 82, Phone: "+1 555 0100", Verified: "valid", UpdatedAt: "2026-09-01"}}
	h := NewHunter(fh, 0.03)

	qr, err := h.Query(context.Background(), PersonIdentifier{FirstName: "Dana", LastName: "Reyes", CompanyDomain: "acme.com"}, []string{FieldEmail})
	require.NoError(t, err)
	assert.Equal(t, "acme.com", fh.got.Domain)
	assert.Equal(t, 0.03, qr.CostUSD)

	email, ok := qr.Field(FieldEmail)
	require.True(t, ok)
	assert.Equal(t, "dana@acme.com", email.Value)
	assert.Equal(t, 0.95, email.Confidence)
	require.NotNil(t, email.DataAsOf)

	_, ok = qr.Field(FieldPhone)
	assert.False(t, ok, "phone not requested")
}

func TestHunter_QueryError(t *testing.T) {
	h := NewHunter(&fakeHunter{err: errors.New("boom")}, 0.03)
	_, err := h.Query(context.Background(), PersonIdentifier{CompanyDomain: "acme.com"}, []string{FieldEmail})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider: hunter query")
}

type fakeLusha struct {
	person *lusha.Person
}

func (f *fakeLusha) LookupPerson(_ context.Context, _ lusha.PersonRequest) (*lusha.Person, error) {
	return f.person, nil
}

func TestLusha_Query(t *testing.T) {
	l := NewLusha(&fakeLusha{person: &lusha.Person{
		Emails: []lusha.Email{{Email: "dana@acme.com", Type: "work", Confidence: "A"}},
		Phones: []lusha.Phone{{Number: "+1 555 0199", Type: "direct"}},
	}}, 0.08)

	qr, err := l.Query(context.Background(), PersonIdentifier{LinkedInURL: "https://linkedin.com/in/dana"}, []string{FieldEmail, FieldPhone})
	require.NoError(t, err)

	email, ok := qr.Field(FieldEmail)
	require.True(t, ok)
	assert.Equal(t, 0.9, email.Confidence)

	phone, ok := qr.Field(FieldPhone)
	require.True(t, ok)
	assert.Equal(t, "+1 555 0199", phone.Value)
	assert.Equal(t, 0.85, phone.Confidence)
}

func TestLusha_EmptyRecord(t *testing.T) {
	l := NewLusha(&fakeLusha{person: &lusha.Person{}}, 0.08)
	qr, err := l.Query(context.Background(), PersonIdentifier{LinkedInURL: "x"}, []string{FieldEmail})
	require.NoError(t, err)
	assert.Empty(t, qr.Fields)
}

func TestEmailConfidence(t *testing.T) {
	assert.Equal(t, 0.97, emailConfidence(lusha.Email{Type: "work", Confidence: "a+"}))
	assert.Equal(t, 0.8, emailConfidence(lusha.Email{Type: "work"}))
	assert.InDelta(t, 0.45, emailConfidence(lusha.Email{Type: "personal", Confidence: "A"}), 1e-9)
}
