package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/internal/ingest"
	"github.com/charlesng35/domaingate/internal/services"
	appErrors "github.com/charlesng35/domaingate/pkg/errors"
	"github.com/charlesng35/domaingate/pkg/response"
)

const maxUploadBytes = 5 << 20

// DomainHandler administers the allow-list.
type DomainHandler struct {
	allow    *services.AllowListService
	ingester *ingest.Ingester
}

// NewDomainHandler constructs an allow-list handler.
func NewDomainHandler(allow *services.AllowListService, ingester *ingest.Ingester) (*DomainHandler, error) {
	if allow == nil {
		return nil, errors.New("domain handler: allow list service is required")
	}
	if ingester == nil {
		return nil, errors.New("domain handler: ingester is required")
	}
	return &DomainHandler{allow: allow, ingester: ingester}, nil
}

type addDomainsRequest struct {
	Input   string `json:"input" validate:"notblank"`
	AddedBy string `json:"addedBy" validate:"max=128"`
}

type bulkDeleteDomainsRequest struct {
	Domains []string `json:"domains"`
}

type ingestResponse struct {
	Message string        `json:"message"`
	Results ingest.Result `json:"results"`
}

// List returns a page of allow-list entries.
func (h *DomainHandler) List(c *gin.Context) {
	opts := listOptions(c)
	domains, total, err := h.allow.List(requestContext(c), opts)
	if err != nil {
		internalError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, domains, response.NewMeta(opts.Page, opts.PerPage, total))
}

// Add ingests a mixed list of emails and domains.
func (h *DomainHandler) Add(c *gin.Context) {
	var req addDomainsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.ingest(c, req.Input, ingest.ModeMixed, req.AddedBy)
}

// Upload ingests a text file of emails and domains, one per line.
func (h *DomainHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("Please select a file to upload"))
		return
	}
	if header.Size > maxUploadBytes {
		response.Error(c, appErrors.NewBadRequest("File is too large"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("Unable to read uploaded file"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("Unable to read uploaded file"))
		return
	}

	h.ingest(c, string(content), ingest.ModeFile, c.PostForm("addedBy"))
}

func (h *DomainHandler) ingest(c *gin.Context, raw string, mode ingest.Mode, addedBy string) {
	result, err := h.ingester.Ingest(requestContext(c), raw, mode, addedBy)
	if err != nil {
		if errors.Is(err, ingest.ErrNoInput) {
			response.Error(c, appErrors.NewBadRequest("No valid input provided"))
			return
		}
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, ingestResponse{Message: result.Summary(), Results: result})
}

// Delete removes a single domain.
func (h *DomainHandler) Delete(c *gin.Context) {
	domain := strings.TrimSpace(c.Param("domain"))
	if domain == "" {
		response.Error(c, appErrors.NewBadRequest("Please provide a domain to delete"))
		return
	}

	if err := h.allow.Delete(requestContext(c), domain); err != nil {
		if errors.Is(err, services.ErrDomainNotFound) {
			response.Error(c, appErrors.NewNotFound("Domain not found"))
			return
		}
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": 1})
}

// BulkDelete removes the listed domains.
func (h *DomainHandler) BulkDelete(c *gin.Context) {
	var req bulkDeleteDomainsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if len(req.Domains) == 0 {
		response.Error(c, appErrors.NewBadRequest("No domains to delete"))
		return
	}

	deleted, err := h.allow.BulkDelete(requestContext(c), req.Domains)
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// DeleteAll empties the allow-list.
func (h *DomainHandler) DeleteAll(c *gin.Context) {
	deleted, err := h.allow.DeleteAll(requestContext(c))
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}
