package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickudo2004/kairon/go/internal/models"
	"github.com/patrickudo2004/kairon/go/internal/programs"
)

func programServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewProgramHandler(programs.NewApp(programs.NewMemoryStore())).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestProgramHandlerCRUD(t *testing.T) {
	srv := programServer(t)
	p := models.Program{
		ID:        "p1",
		Title:     "Summit",
		Date:      "2026-05-10",
		StartTime: "09:00",
		Slots: []models.Slot{
			{ID: "a", Title: "Opening", Speaker: "Ada", DurationMinutes: 10, Type: models.SlotTypeKeynote},
		},
	}

	resp := do(t, http.MethodPut, srv.URL+"/api/programs/p1", p)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/programs/p1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Program
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, p.Title, got.Title)
	require.Len(t, got.Slots, 1)

	resp = do(t, http.MethodPost, srv.URL+"/api/programs/p1/duplicate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dup models.Program
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dup))
	assert.Equal(t, "Summit (Copy)", dup.Title)
	assert.NotEqual(t, "p1", dup.ID)

	resp = do(t, http.MethodGet, srv.URL+"/api/programs", nil)
	var list []models.Program
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)

	resp = do(t, http.MethodDelete, srv.URL+"/api/programs/"+dup.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var next models.Program
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&next))
	assert.Equal(t, "p1", next.ID)
}

func TestProgramHandlerErrors(t *testing.T) {
	srv := programServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/programs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/api/programs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/api/programs/p1", models.Program{ID: "p2", Title: "X", StartTime: "09:00"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/api/programs/p1", models.Program{ID: "p1", StartTime: "09:00"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/programs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Program
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list)
}
