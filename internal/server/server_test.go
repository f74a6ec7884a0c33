package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/store"
)

type fakeRunner struct {
	resp        *model.Response
	err         error
	got         model.Request
	invalidated string
}

func (f *fakeRunner) Run(_ context.Context, req model.Request) (*model.Response, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeRunner) Invalidate(_ context.Context, companyID string) (int, error) {
	f.invalidated = companyID
	return 2, nil
}

type fakeRuns map[string]*model.Run

func (f fakeRuns) GetRun(_ context.Context, id string) (*model.Run, error) {
	if r, ok := f[id]; ok {
		return r, nil
	}
	return nil, eris.Wrapf(store.ErrNotFound, "run %s", id)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&fakeRunner{}, nil, Options{}).Routes(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateBuyerGroup(t *testing.T) {
	runner := &fakeRunner{resp: &model.Response{
		RunID:      "run-1",
		Company:    model.Company{ID: "c-1", Name: "Acme Corp"},
		BuyerGroup: &model.BuyerGroup{Members: []model.Member{{Person: model.Person{ID: "p1", Name: "Jane Doe"}, Role: model.RoleDecisionMaker}}},
	}}
	h := New(runner, nil, Options{}).Routes()

	rec := do(t, h, http.MethodPost, "/v1/buyer-groups",
		`{"companyName":"Acme Corp","sellerProfile":{"targetRoles":["VP of Engineering"]},"options":{"maxGroupSize":5}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Acme Corp", runner.got.CompanyName)
	assert.Equal(t, []string{"VP of Engineering"}, runner.got.SellerProfile.TargetRoles)
	assert.Equal(t, 5, runner.got.Options.MaxGroupSize)

	var resp model.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	require.Len(t, resp.BuyerGroup.Members, 1)
}

func TestCreateBuyerGroup_BadBody(t *testing.T) {
	rec := do(t, New(&fakeRunner{}, nil, Options{}).Routes(), http.MethodPost, "/v1/buyer-groups", `{"companyName":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.CodeInvalidRequest, decodeError(t, rec).Code)
}

func TestCreateBuyerGroup_ErrorCodes(t *testing.T) {
	tests := []struct {
		code   model.ErrorCode
		status int
	}{
		{model.CodeInvalidRequest, http.StatusBadRequest},
		{model.CodeCompanyNotFound, http.StatusNotFound},
		{model.CodeProviderRateLimited, http.StatusTooManyRequests},
		{model.CodeProviderUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			runner := &fakeRunner{err: &buyergroup.Error{Code: tt.code, Message: "nope"}}
			rec := do(t, New(runner, nil, Options{}).Routes(), http.MethodPost, "/v1/buyer-groups", `{"companyName":"Globex"}`)

			assert.Equal(t, tt.status, rec.Code)
			detail := decodeError(t, rec)
			assert.Equal(t, tt.code, detail.Code)
			assert.Equal(t, "nope", detail.Message)
		})
	}
}

func TestCreateBuyerGroup_UnclassifiedError(t *testing.T) {
	rec := do(t, New(&fakeRunner{err: errors.New("disk full")}, nil, Options{}).Routes(),
		http.MethodPost, "/v1/buyer-groups", `{"companyName":"Acme"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestNoQualifiedCandidatesIsSuccess(t *testing.T) {
	runner := &fakeRunner{resp: &model.Response{Code: model.CodeNoQualifiedCandidates, BuyerGroup: &model.BuyerGroup{}}}
	rec := do(t, New(runner, nil, Options{}).Routes(), http.MethodPost, "/v1/buyer-groups", `{"companyName":"Acme"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NO_QUALIFIED_CANDIDATES"`)
}

func TestInvalidate(t *testing.T) {
	runner := &fakeRunner{}
	rec := do(t, New(runner, nil, Options{}).Routes(), http.MethodDelete, "/v1/buyer-groups/c-42", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c-42", runner.invalidated)
	assert.JSONEq(t, `{"companyId":"c-42","invalidated":2}`, rec.Body.String())
}

func TestGetRun(t *testing.T) {
	runs := fakeRuns{"run-1": {ID: "run-1", Stage: model.StageComplete}}
	h := New(&fakeRunner{}, runs, Options{}).Routes()

	rec := do(t, h, http.MethodGet, "/v1/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, model.StageComplete, run.Stage)

	missing := do(t, h, http.MethodGet, "/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, missing.Code)

	noStore := do(t, New(&fakeRunner{}, nil, Options{}).Routes(), http.MethodGet, "/v1/runs/run-1", "")
	assert.Equal(t, http.StatusNotFound, noStore.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := New(&fakeRunner{}, nil, Options{CORSOrigins: []string{"https://app.example.com"}}).Routes()

	req := httptest.NewRequest(http.MethodOptions, "/v1/buyer-groups", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor_Default(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor(""))
}
