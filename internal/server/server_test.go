package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/newdok/mailingest/internal/ingest"
	"github.com/newdok/mailingest/internal/model"
	"github.com/newdok/mailingest/internal/server"
	"github.com/newdok/mailingest/internal/store"
	"github.com/newdok/mailingest/internal/testutil"
)

const testSecret = "test-secret"

type fakeIngestor struct {
	runs   atomic.Int32
	status ingest.RunStatus
}

func (f *fakeIngestor) Run(context.Context) ingest.RunSummary {
	f.runs.Add(1)
	st := f.status
	if st == "" {
		st = ingest.RunCompleted
	}
	return ingest.RunSummary{RunID: "run-1", Status: st}
}

func (f *fakeIngestor) Status() ingest.JobStatus {
	return ingest.JobStatus{State: ingest.JobIdle}
}

type fixture struct {
	srv   *server.Server
	store *store.SQLStore
	ing   *fakeIngestor
	user  *model.User
	token string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := testutil.NewTestStore(t)
	u := testutil.SeedUser(t, st, "reader@newdok.test")
	ing := &fakeIngestor{}

	token, err := server.GenerateToken(u.ID, testSecret, time.Hour)
	require.NoError(t, err)

	return &fixture{
		srv:   server.New(st, ing, testSecret, zaptest.NewLogger(t)),
		store: st,
		ing:   ing,
		user:  u,
		token: token,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) subscribe(t *testing.T, brand string, status model.SubscriptionStatus) *model.Newsletter {
	t.Helper()

	n := testutil.SeedNewsletter(t, f.store, model.Newsletter{BrandEmail: brand})
	err := f.store.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateSubscription(context.Background(), &model.Subscription{
			UserID:       f.user.ID,
			NewsletterID: n.ID,
			Status:       status,
		})
	})
	require.NoError(t, err)
	return n
}

func TestHealthDoesNotRequireAuth(t *testing.T) {
	f := newFixture(t)
	f.token = ""

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	f.token = ""
	rec := f.do(t, http.MethodPost, "/ingestion/run", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.token = "not-a-jwt"
	rec = f.do(t, http.MethodPost, "/ingestion/run", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrong, err := server.GenerateToken(f.user.ID, "other-secret", time.Hour)
	require.NoError(t, err)
	f.token = wrong
	rec = f.do(t, http.MethodPost, "/ingestion/run", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, f.ing.runs.Load())
}

func TestParseTokenNumericID(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": float64(42)})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	id, err := server.ParseToken(signed, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestParseTokenRejectsMissingID(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = server.ParseToken(signed, testSecret)
	assert.Error(t, err)
}

func TestRunIngestion(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/ingestion/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary ingest.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, ingest.RunCompleted, summary.Status)
	assert.Equal(t, int32(1), f.ing.runs.Load())
}

func TestRunIngestionAlreadyRunning(t *testing.T) {
	f := newFixture(t)
	f.ing.status = ingest.RunAlreadyRunning

	rec := f.do(t, http.MethodPost, "/ingestion/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "already_running")
}

func TestRunIngestionFailed(t *testing.T) {
	f := newFixture(t)
	f.ing.status = ingest.RunFailed

	rec := f.do(t, http.MethodPost, "/ingestion/run", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed"`)
}

func TestIngestionStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/ingestion/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"idle"`)
}

func TestListSubscriptionsFilters(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a@brand.test", model.SubscriptionConfirmed)
	f.subscribe(t, "b@brand.test", model.SubscriptionPaused)
	f.subscribe(t, "c@brand.test", model.SubscriptionCheck)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?status=active", 1},
		{"?status=paused", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/subscriptions"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var views []model.SubscriptionView
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
			assert.Len(t, views, tt.want)
		})
	}

	rec := f.do(t, http.MethodGet, "/subscriptions?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSubscriptionsEmptyIsArray(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/subscriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t)
	n := f.subscribe(t, "a@brand.test", model.SubscriptionConfirmed)
	body := `{"newsletterId":"` + n.ID + `"}`

	rec := f.do(t, http.MethodPatch, "/subscriptions/pause", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var view model.SubscriptionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.SubscriptionPaused, view.Status)
	assert.True(t, view.IsPaused)

	sub, err := f.store.GetSubscription(context.Background(), f.user.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionPaused, sub.Status)

	rec = f.do(t, http.MethodPatch, "/subscriptions/pause", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPatch, "/subscriptions/resume", body)
	require.Equal(t, http.StatusOK, rec.Code)

	sub, err = f.store.GetSubscription(context.Background(), f.user.ID, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionConfirmed, sub.Status)
}

func TestPauseCheckIsConflict(t *testing.T) {
	f := newFixture(t)
	n := f.subscribe(t, "a@brand.test", model.SubscriptionCheck)

	rec := f.do(t, http.MethodPatch, "/subscriptions/pause", `{"newsletterId":"`+n.ID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPauseUnknownSubscription(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/subscriptions/pause", `{"newsletterId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, "/subscriptions/pause", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArticleCount(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/articles/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0}`, rec.Body.String())
}
