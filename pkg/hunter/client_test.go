package hunter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindEmail(t *testing.T) {
	tests := []struct {
		name      string
		req       FindEmailRequest
		status    int
		body      string
		wantErr   string
		wantEmail string
		wantQuery map[string]string
	}{
		{
			name:   "success_first_last",
			req:    FindEmailRequest{Domain: "acme.com", FirstName: "Dana", LastName: "Reyes"},
			status: http.StatusOK,
			body: `{"data": {"email": "dana@acme.com", "score": 94, "position": "VP Engineering",
				"sources": [{"domain": "acme.com", "last_seen_on": "2026-02-01"}],
				"verification": {"date": "2026-02-03", "status": "valid"}}}`,
			wantEmail: "dana@acme.com",
			wantQuery: map[string]string{"domain": "acme.com", "first_name": "Dana", "last_name": "Reyes"},
		},
		{
			name:      "full_name_fallback",
			req:       FindEmailRequest{Company: "Acme Corp", FullName: "Dana Reyes"},
			status:    http.StatusOK,
			body:      `{"data": {"email": null, "score": 0}}`,
			wantQuery: map[string]string{"company": "Acme Corp", "full_name": "Dana Reyes"},
		},
		{
			name:    "rate_limit",
			req:     FindEmailRequest{Domain: "acme.com", FullName: "Dana Reyes"},
			status:  http.StatusTooManyRequests,
			body:    `{"errors":[{"id":"too_many_requests"}]}`,
			wantErr: "unexpected status 429",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/email-finder", r.URL.Path)
				assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
				for k, v := range tt.wantQuery {
					assert.Equal(t, v, r.URL.Query().Get(k), k)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := NewClient("test-key", WithBaseURL(srv.URL)).FindEmail(context.Background(), tt.req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, res.Email)
		})
	}
}

func TestFindEmail_Verification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"email": "a@b.com", "score": 80, "verification": {"date": "2026-01-01", "status": "accept_all"}}}`))
	}))
	defer srv.Close()

	res, err := NewClient("k", WithBaseURL(srv.URL)).FindEmail(context.Background(), FindEmailRequest{Domain: "b.com", FullName: "A B"})
	require.NoError(t, err)
	assert.Equal(t, 80, res.Score)
	assert.Equal(t, "accept_all", res.Verified)
	assert.Equal(t, "2026-01-01", res.UpdatedAt)
}

func TestFindEmail_RequiresDomainOrCompany(t *testing.T) {
	_, err := NewClient("k").FindEmail(context.Background(), FindEmailRequest{FullName: "A B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain or company is required")
}
