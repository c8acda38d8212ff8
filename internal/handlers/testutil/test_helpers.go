package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	sharedtestutil "github.com/charlesng35/domaingate/internal/database/testutil"
	"github.com/charlesng35/domaingate/pkg/response"
)

// Env bundles an in-memory database and a bare Gin engine for handler tests.
// Callers register the routes they exercise on Router.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
}

// NewEnv provisions a fresh migrated database and an empty router.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	return &Env{
		T:      t,
		DB:     sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate()),
		Router: gin.New(),
	}
}

// APIResponse represents the canonical API envelope returned by admin handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// MessageResponse is the flat body served by the public endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeMessage parses a flat message body.
func DecodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Message
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes a JSON request against the router. Extra headers are applied
// in pairs of name and value.
func (e *Env) Request(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Upload posts a multipart form with a single file field and optional text fields.
func (e *Env) Upload(path, field, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.T, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(e.T, err)
	_, err = part.Write(content)
	require.NoError(e.T, err)
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
