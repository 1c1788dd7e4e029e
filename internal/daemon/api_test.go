package daemon

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dbaasd/dbaasd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	*testEnv
	mux *http.ServeMux
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	env := newTestEnv(t)
	mux := http.NewServeMux()
	api := NewControlAPI(env.mgr, NewRegionService(env.store, log.New(io.Discard, "", 0)), log.New(io.Discard, "", 0))
	api.Register(mux)
	return &apiEnv{testEnv: env, mux: mux}
}

func (e *apiEnv) do(t *testing.T, method, path string, caller models.CallerContext, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if caller.AccountID != "" {
		req.Header.Set(headerAccountID, caller.AccountID)
	}
	if caller.UserID != "" {
		req.Header.Set(headerUserID, caller.UserID)
	}
	if caller.CallType != "" {
		req.Header.Set(headerCallType, string(caller.CallType))
	}
	if caller.InstallationID != "" {
		req.Header.Set(headerInstallationID, caller.InstallationID)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createBody() map[string]any {
	return map[string]any{
		"name":         "orders",
		"description":  "orders service backend",
		"workload":     "small",
		"region":       map[string]string{"id": "eu-west"},
		"tech_contact": map[string]string{"id": "UR-100"},
	}
}

func TestControlAPIDatabases(t *testing.T) {
	t.Run("create and list", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(t, http.MethodPost, "/v1/databases", userCaller, createBody())
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decodeBody[DatabaseView](t, rec)
		assert.Regexp(t, `^DBPG-\d{5}$`, created.ID)
		assert.Equal(t, models.StatusReviewing, created.Status)

		rec = env.do(t, http.MethodGet, "/v1/databases", userCaller, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		listed := decodeBody[databaseListResponse](t, rec)
		require.Len(t, listed.Databases, 1)
		assert.Equal(t, created.ID, listed.Databases[0].ID)
	})

	t.Run("missing identity headers", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(t, http.MethodGet, "/v1/databases", models.CallerContext{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), headerAccountID)
	})

	t.Run("unknown call type", func(t *testing.T) {
		env := newAPIEnv(t)
		caller := userCaller
		caller.CallType = "superuser"
		rec := env.do(t, http.MethodGet, "/v1/databases", caller, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create validation", func(t *testing.T) {
		env := newAPIEnv(t)

		body := createBody()
		body["name"] = ""
		rec := env.do(t, http.MethodPost, "/v1/databases", userCaller, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "name is required")

		body = createBody()
		long := make([]byte, maxNameLength+1)
		for i := range long {
			long[i] = 'a'
		}
		body["name"] = string(long)
		rec = env.do(t, http.MethodPost, "/v1/databases", userCaller, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		body = createBody()
		body["region"] = map[string]string{"id": "mars-1"}
		rec = env.do(t, http.MethodPost, "/v1/databases", userCaller, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "region does not exist")
	})

	t.Run("retrieve scoping", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)

		rec := env.do(t, http.MethodGet, "/v1/databases/"+view.ID, userCaller, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/v1/databases/"+view.ID, otherCaller, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)

		rec := env.do(t, http.MethodPut, "/v1/databases/"+view.ID, userCaller,
			map[string]any{"name": "orders-v2"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeBody[DatabaseView](t, rec)
		assert.Equal(t, "orders-v2", updated.Name)
	})

	t.Run("activate requires admin", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)
		body := map[string]any{
			"credentials": map[string]string{"host": "pg.example.com", "username": "orders", "password": "s3cret"},
		}

		rec := env.do(t, http.MethodPost, "/v1/databases/"+view.ID+"/activate", userCaller, body)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodPost, "/v1/databases/"+view.ID+"/activate", adminCaller, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		activated := decodeBody[DatabaseView](t, rec)
		assert.Equal(t, models.StatusActive, activated.Status)
		require.NotNil(t, activated.Credentials)
		assert.Equal(t, "s3cret", activated.Credentials.Password)
	})

	t.Run("activate without credentials on reviewing", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)
		rec := env.do(t, http.MethodPost, "/v1/databases/"+view.ID+"/activate", adminCaller, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "credentials are required")
	})

	t.Run("incomplete credentials rejected", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)
		rec := env.do(t, http.MethodPost, "/v1/databases/"+view.ID+"/activate", adminCaller,
			map[string]any{"credentials": map[string]string{"host": "pg.example.com"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reconfigure", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)
		env.mustActivate(t, view.ID)

		rec := env.do(t, http.MethodPost, "/v1/databases/"+view.ID+"/reconfigure", userCaller,
			map[string]any{"details": "bump storage"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decodeBody[DatabaseView](t, rec)
		assert.Equal(t, models.StatusReconfiguring, got.Status)
	})

	t.Run("reconfigure wrong status", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)
		rec := env.do(t, http.MethodPost, "/v1/databases/"+view.ID+"/reconfigure", userCaller, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "only an active database")
	})

	t.Run("delete", func(t *testing.T) {
		env := newAPIEnv(t)
		view := env.mustCreate(t, createInput(), userCaller)
		rec := env.do(t, http.MethodDelete, "/v1/databases/"+view.ID, userCaller, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[DatabaseView](t, rec)
		assert.Equal(t, models.StatusDeleted, got.Status)

		rec = env.do(t, http.MethodGet, "/v1/databases/"+view.ID, userCaller, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(t, http.MethodPatch, "/v1/databases", userCaller, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
	})
}

func TestControlAPIRegions(t *testing.T) {
	t.Run("create requires admin", func(t *testing.T) {
		env := newAPIEnv(t)
		body := map[string]string{"id": "us-east", "name": "US East"}

		rec := env.do(t, http.MethodPost, "/v1/regions", userCaller, body)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodPost, "/v1/regions", adminCaller, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodPost, "/v1/regions", adminCaller, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "region id must be unique")
	})

	t.Run("list and retrieve", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(t, http.MethodGet, "/v1/regions", userCaller, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		listed := decodeBody[regionListResponse](t, rec)
		require.Len(t, listed.Regions, 1)
		assert.Equal(t, "eu-west", listed.Regions[0].ID)

		rec = env.do(t, http.MethodGet, "/v1/regions/eu-west", userCaller, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, http.MethodGet, "/v1/regions/mars-1", userCaller, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestControlAPIStatus(t *testing.T) {
	env := newAPIEnv(t)
	env.mustCreate(t, createInput(), userCaller)
	view := env.mustCreate(t, createInput(), userCaller)
	env.mustActivate(t, view.ID)

	rec := env.do(t, http.MethodGet, "/v1/status", adminCaller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[statusResponse](t, rec)
	assert.Equal(t, 1, status.Databases["reviewing"])
	assert.Equal(t, 1, status.Databases["active"])
	assert.NotEmpty(t, status.Version)
}
