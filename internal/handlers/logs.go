package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/internal/services"
	appErrors "github.com/charlesng35/domaingate/pkg/errors"
	"github.com/charlesng35/domaingate/pkg/response"
)

// LogHandler administers the verification audit log.
type LogHandler struct {
	logs *services.VerificationLogService
}

// NewLogHandler constructs an audit log handler.
func NewLogHandler(logs *services.VerificationLogService) (*LogHandler, error) {
	if logs == nil {
		return nil, errors.New("log handler: verification log service is required")
	}
	return &LogHandler{logs: logs}, nil
}

type bulkDeleteLogsRequest struct {
	IDs []string `json:"ids"`
}

// List returns a page of verification logs, newest first.
func (h *LogHandler) List(c *gin.Context) {
	opts := listOptions(c)
	entries, total, err := h.logs.List(requestContext(c), opts)
	if err != nil {
		internalError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, entries, response.NewMeta(opts.Page, opts.PerPage, total))
}

// Delete removes one log entry.
func (h *LogHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.logs.Delete(requestContext(c), id); err != nil {
		if errors.Is(err, services.ErrLogNotFound) {
			response.Error(c, appErrors.NewNotFound("Email log not found"))
			return
		}
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": 1})
}

// BulkDelete removes the listed log entries.
func (h *LogHandler) BulkDelete(c *gin.Context) {
	var req bulkDeleteLogsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if len(req.IDs) == 0 {
		response.Error(c, appErrors.NewBadRequest("No email logs provided for deletion"))
		return
	}

	deleted, err := h.logs.BulkDelete(requestContext(c), req.IDs)
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// DeleteAll purges the audit log.
func (h *LogHandler) DeleteAll(c *gin.Context) {
	deleted, err := h.logs.DeleteAll(requestContext(c))
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}
