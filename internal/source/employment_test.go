package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/buyer-group-cli/pkg/anthropic/mocks"
	"github.com/sells-group/buyer-group-cli/pkg/perplexity"
	perplexitymocks "github.com/sells-group/buyer-group-cli/pkg/perplexity/mocks"
	"github.com/sells-group/buyer-group-cli/pkg/zerobounce"
	zbmocks "github.com/sells-group/buyer-group-cli/pkg/zerobounce/mocks"
)

var (
	jane = model.Candidate{ID: "101", FullName: "Jane Doe", Title: "VP of Engineering"}
	acme = model.Company{ID: "11", Name: "Acme Corp", Domain: "acme.com"}
)

func chat(text string) *perplexity.ChatCompletionResponse {
	return &perplexity.ChatCompletionResponse{Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: text}}}}
}

func TestZeroBounce_VerifyEmail(t *testing.T) {
	client := zbmocks.NewMockClient(t)
	client.On("Validate", mock.Anything, "ok@acme.com").Return(&zerobounce.Result{Status: zerobounce.StatusValid}, nil)
	client.On("Validate", mock.Anything, "any@acme.com").Return(&zerobounce.Result{Status: zerobounce.StatusCatchAll}, nil)
	client.On("Validate", mock.Anything, "bad@acme.com").Return(&zerobounce.Result{Status: zerobounce.StatusInvalid}, nil)
	client.On("Validate", mock.Anything, "who@acme.com").Return(&zerobounce.Result{Status: zerobounce.StatusUnknown}, nil)
	client.On("Validate", mock.Anything, "down@acme.com").Return(nil, errors.New("i/o timeout"))

	zb := NewZeroBounce(client)
	ctx := context.Background()

	tests := []struct {
		email string
		want  buyergroup.EmailStatus
	}{
		{"ok@acme.com", buyergroup.EmailValid},
		{"any@acme.com", buyergroup.EmailValid},
		{"bad@acme.com", buyergroup.EmailInvalid},
		{"who@acme.com", buyergroup.EmailUnknown},
	}
	for _, tt := range tests {
		got, err := zb.VerifyEmail(ctx, tt.email)
		require.NoError(t, err, tt.email)
		assert.Equal(t, tt.want, got, tt.email)
	}

	_, err := zb.VerifyEmail(ctx, "down@acme.com")
	assert.Error(t, err)
}

func TestEmployment_StructuredAnswer(t *testing.T) {
	search := perplexitymocks.NewMockClient(t)
	search.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return req.Model == "sonar" && req.ResponseFormat != nil &&
			len(req.Messages) == 2 && req.Messages[1].Role == "user" &&
			containsAll(req.Messages[1].Content, "Jane Doe", "Acme Corp", "acme.com")
	})).Return(chat(`{"current": true, "title": "VP of Engineering", "evidence": "company site"}`), nil)

	got, err := NewEmployment(search, nil, "sonar", "").CheckEmployment(context.Background(), jane, acme)

	require.NoError(t, err)
	assert.Equal(t, buyergroup.Employment{Known: true, Current: true, Evidence: "company site"}, got)
}

func TestEmployment_FencedAnswer(t *testing.T) {
	search := perplexitymocks.NewMockClient(t)
	search.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(chat("```json\n{\"current\": false, \"evidence\": \"left in 2025\"}\n```"), nil)

	got, err := NewEmployment(search, nil, "sonar", "").CheckEmployment(context.Background(), jane, acme)

	require.NoError(t, err)
	assert.True(t, got.Known)
	assert.False(t, got.Current)
}

func TestEmployment_HaikuExtractsFromProse(t *testing.T) {
	prose := "Jane Doe moved to Globex as CTO earlier this year."
	search := perplexitymocks.NewMockClient(t)
	search.On("ChatCompletion", mock.Anything, mock.Anything).Return(chat(prose), nil)

	haiku := anthropicmocks.NewMockClient(t)
	haiku.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == anthropic.DefaultModel && len(req.Messages) == 1 && req.Messages[0].Content == prose
	})).Return(&anthropic.MessageResponse{Content: []anthropic.ContentBlock{
		{Type: "text", Text: `{"current": false, "title": "CTO", "evidence": "moved to Globex"}`},
	}}, nil)

	got, err := NewEmployment(search, haiku, "sonar", "").CheckEmployment(context.Background(), jane, acme)

	require.NoError(t, err)
	assert.Equal(t, buyergroup.Employment{Known: true, Current: false, Evidence: "moved to Globex"}, got)
}

func TestEmployment_NoVerdict(t *testing.T) {
	search := perplexitymocks.NewMockClient(t)
	search.On("ChatCompletion", mock.Anything, mock.Anything).Return(chat(`{"current": null, "evidence": ""}`), nil)

	got, err := NewEmployment(search, nil, "sonar", "").CheckEmployment(context.Background(), jane, acme)

	require.NoError(t, err)
	assert.False(t, got.Known)
}

func TestEmployment_HaikuFailureIsUnknown(t *testing.T) {
	search := perplexitymocks.NewMockClient(t)
	search.On("ChatCompletion", mock.Anything, mock.Anything).Return(chat("not sure"), nil)
	haiku := anthropicmocks.NewMockClient(t)
	haiku.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	got, err := NewEmployment(search, haiku, "sonar", "").CheckEmployment(context.Background(), jane, acme)

	require.NoError(t, err)
	assert.False(t, got.Known)
}

func TestEmployment_SearchError(t *testing.T) {
	search := perplexitymocks.NewMockClient(t)
	search.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset by peer"))

	_, err := NewEmployment(search, nil, "sonar", "").CheckEmployment(context.Background(), jane, acme)

	assert.Error(t, err)
}

func TestEmployment_NamelessCandidateSkipsSearch(t *testing.T) {
	search := perplexitymocks.NewMockClient(t)

	got, err := NewEmployment(search, nil, "sonar", "").CheckEmployment(context.Background(), model.Candidate{ID: "x"}, acme)

	require.NoError(t, err)
	assert.False(t, got.Known)
	search.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
