package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
	"taskmanager/internal/storage/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tasks.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, logger, "")
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func decodeTasks(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()

	var payload []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func dateOffset(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DateLayout)
}

func TestCreateTask(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/task", map[string]any{
		"name": "X", "dueDate": "2099-01-01", "priority": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	got := decodeTask(t, rec)
	assert.Equal(t, "X", got["name"])
	assert.Equal(t, "2099-01-01", got["dueDate"])
	assert.Equal(t, float64(3), got["priority"])
	assert.NotZero(t, got["id"])
	assert.NotEmpty(t, got["createdAt"])
	assert.NotEmpty(t, got["updatedAt"])

	// Future due date: the isOverdue key must be absent, not false.
	_, present := got["isOverdue"]
	assert.False(t, present, "isOverdue key should be omitted for non-overdue tasks")
}

func TestCreateTaskValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"empty name", map[string]any{"name": "", "dueDate": "2099-01-01", "priority": 3}},
		{"whitespace name", map[string]any{"name": "   ", "dueDate": "2099-01-01", "priority": 3}},
		{"missing due date", map[string]any{"name": "X", "priority": 3}},
		{"malformed due date", map[string]any{"name": "X", "dueDate": "tomorrow", "priority": 3}},
		{"priority too low", map[string]any{"name": "X", "dueDate": "2099-01-01", "priority": 0}},
		{"priority too high", map[string]any{"name": "X", "dueDate": "2099-01-01", "priority": 6}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/task", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// None of the rejected requests may have persisted a record.
	rec := doRequest(t, srv, http.MethodGet, "/task", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeTasks(t, rec))
}

func TestGetTaskNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/task/999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasksOrdering(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []map[string]any{
		{"name": "B", "dueDate": "2024-01-01", "priority": 3},
		{"name": "A", "dueDate": "2024-01-01", "priority": 3},
		{"name": "C", "dueDate": "2024-01-02", "priority": 3},
	} {
		rec := doRequest(t, srv, http.MethodPost, "/task", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/task", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tasks := decodeTasks(t, rec)
	require.Len(t, tasks, 3)
	for i, want := range []string{"A", "B", "C"} {
		assert.Equal(t, want, tasks[i]["name"], "position %d", i)
	}
}

func TestListTasksFilters(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/task", map[string]any{
		"name": "yesterday", "dueDate": dateOffset(-1), "priority": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	overdueTask := decodeTask(t, rec)
	assert.Equal(t, true, overdueTask["isOverdue"])

	rec = doRequest(t, srv, http.MethodPost, "/task", map[string]any{
		"name": "today", "dueDate": dateOffset(0), "priority": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	todayTask := decodeTask(t, rec)
	_, present := todayTask["isOverdue"]
	assert.False(t, present, "task due today must not carry isOverdue")

	names := func(rec *httptest.ResponseRecorder) []string {
		var out []string
		for _, task := range decodeTasks(t, rec) {
			out = append(out, task["name"].(string))
		}
		return out
	}

	rec = doRequest(t, srv, http.MethodGet, "/task?type=overdue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"yesterday"}, names(rec))

	rec = doRequest(t, srv, http.MethodGet, "/task?type=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"today"}, names(rec))

	rec = doRequest(t, srv, http.MethodGet, "/task?type=all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeTasks(t, rec), 2)

	rec = doRequest(t, srv, http.MethodGet, "/task?type=done", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasksAnnotatesOverdue(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/task", map[string]any{
		"name": "late", "dueDate": dateOffset(-1), "priority": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/task", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tasks := decodeTasks(t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, true, tasks[0]["isOverdue"])
}

func TestUpdateTask(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/task", map[string]any{
		"name": "original", "dueDate": "2099-01-01", "priority": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decodeTask(t, rec)["id"].(float64))

	t.Run("partial update", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, fmt.Sprintf("/task/%d", id), map[string]any{"name": "renamed"})
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeTask(t, rec)
		assert.Equal(t, "renamed", got["name"])
		assert.Equal(t, "2099-01-01", got["dueDate"])
		assert.Equal(t, float64(3), got["priority"])
	})

	t.Run("empty partial keeps fields", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, fmt.Sprintf("/task/%d", id), map[string]any{})
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeTask(t, rec)
		assert.Equal(t, "renamed", got["name"])
		assert.Equal(t, "2099-01-01", got["dueDate"])
		assert.Equal(t, float64(3), got["priority"])
	})

	t.Run("invalid priority rejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, fmt.Sprintf("/task/%d", id), map[string]any{"priority": 9})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPut, fmt.Sprintf("/task/%d", id), map[string]any{"name": "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateMissingTask(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/task/999999", map[string]any{"name": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The failed update must not have created a record.
	rec = doRequest(t, srv, http.MethodGet, "/task", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeTasks(t, rec))
}

func TestDeleteTask(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/task", map[string]any{
		"name": "doomed", "dueDate": "2099-01-01", "priority": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decodeTask(t, rec)["id"].(float64))

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/task/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doomed", decodeTask(t, rec)["name"])

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/task/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/task/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidIDParam(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/task/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))

	// When the client sends none, the server generates one.
	rec = doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
