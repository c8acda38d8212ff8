package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/domaingate/internal/handlers/testutil"
	"github.com/charlesng35/domaingate/internal/models"
)

func newLogEnv(t *testing.T) (*testutil.Env, []*models.VerificationLog) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := newServiceSet(t, env)

	handler, err := NewLogHandler(svc.logs)
	require.NoError(t, err)
	env.Router.GET("/logs", handler.List)
	env.Router.POST("/logs/bulk-delete", handler.BulkDelete)
	env.Router.DELETE("/logs/:id", handler.Delete)
	env.Router.DELETE("/logs", handler.DeleteAll)

	granted := "https://acme.portal.example/"
	base := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	entries := []*models.VerificationLog{
		{Email: "bob@acme.com", Domain: "acme.com", Timestamp: base, RedirectURL: &granted, IPCountry: "Portugal"},
		{Email: "eve@evil.test", Domain: "evil.test", Timestamp: base.Add(time.Minute), IPCountry: "Norway"},
		{Email: "amy@acme.com", Domain: "acme.com", Timestamp: base.Add(2 * time.Minute), IPCountry: "Portugal"},
	}
	for _, entry := range entries {
		require.NoError(t, svc.logs.Log(context.Background(), entry))
	}
	return env, entries
}

func TestLogListNewestFirst(t *testing.T) {
	env, entries := newLogEnv(t)

	w := env.Request(http.MethodGet, "/logs?per_page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, 3, resp.Meta.Total)
	require.Equal(t, 2, resp.Meta.TotalPages)

	var page []models.VerificationLog
	testutil.DecodeInto(t, resp.Data, &page)
	require.Len(t, page, 2)
	require.Equal(t, entries[2].ID, page[0].ID)
	require.Equal(t, entries[1].ID, page[1].ID)
	require.Nil(t, page[1].RedirectURL)
}

func TestLogListSearch(t *testing.T) {
	env, _ := newLogEnv(t)

	w := env.Request(http.MethodGet, "/logs?search=norway", nil)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, 1, resp.Meta.Total)

	var page []models.VerificationLog
	testutil.DecodeInto(t, resp.Data, &page)
	require.Equal(t, "eve@evil.test", page[0].Email)
}

func TestLogDelete(t *testing.T) {
	env, entries := newLogEnv(t)

	w := env.Request(http.MethodDelete, "/logs/"+entries[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodDelete, "/logs/"+entries[0].ID, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Email log not found", testutil.DecodeResponse(t, w).Error.Message)
}

func TestLogBulkDeleteAndDeleteAll(t *testing.T) {
	env, entries := newLogEnv(t)

	w := env.Request(http.MethodPost, "/logs/bulk-delete", map[string]any{"ids": []string{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "No email logs provided for deletion", testutil.DecodeResponse(t, w).Error.Message)

	w = env.Request(http.MethodPost, "/logs/bulk-delete", map[string]any{"ids": []string{entries[0].ID, "unknown-id"}})
	require.Equal(t, http.StatusOK, w.Code)
	var deleted struct {
		Deleted int64 `json:"deleted"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &deleted)
	require.EqualValues(t, 1, deleted.Deleted)

	w = env.Request(http.MethodDelete, "/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &deleted)
	require.EqualValues(t, 2, deleted.Deleted)

	var count int64
	require.NoError(t, env.DB.Model(&models.VerificationLog{}).Count(&count).Error)
	require.Zero(t, count)
}
