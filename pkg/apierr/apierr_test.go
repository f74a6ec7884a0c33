package apierr

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestFromResponse(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")

	err := FromResponse("coresignal", resp, []byte(" slow down "))
	assert.Equal(t, "coresignal: unexpected status 429: slow down", err.Error())
	assert.Equal(t, 7*time.Second, err.RetryAfter)

	long := FromResponse("hunter", &http.Response{StatusCode: 500, Header: http.Header{}}, []byte(strings.Repeat("x", 2000)))
	assert.Len(t, long.Body, maxBody)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "30", 30 * time.Second},
		{"negative", "-3", 0},
		{"http_date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past_date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.in, now))
		})
	}
}

func TestClassifiersThroughWrapping(t *testing.T) {
	base := &Error{Provider: "lusha", StatusCode: 429, RetryAfter: 2 * time.Second}
	wrapped := eris.Wrap(base, "enrich: lookup")

	assert.True(t, IsRateLimited(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, 2*time.Second, RetryAfter(wrapped))
	assert.Equal(t, 429, StatusCode(wrapped))

	assert.True(t, IsNotFound(&Error{StatusCode: 404}))
	assert.Equal(t, 0, StatusCode(eris.New("plain")))
	assert.Zero(t, RetryAfter(nil))
}
