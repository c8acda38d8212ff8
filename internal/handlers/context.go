package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/internal/services"
	appErrors "github.com/charlesng35/domaingate/pkg/errors"
	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// userAgent returns the request user agent, or "" when the request is missing.
func userAgent(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	return c.Request.UserAgent()
}

// listOptions reads page, per_page and search from the query string.
func listOptions(c *gin.Context) services.ListOptions {
	return services.ListOptions{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 0),
		Search:  strings.TrimSpace(c.Query("search")),
	}.Normalised()
}

// internalError logs err and writes a generic 500 response.
func internalError(c *gin.Context, err error) {
	logger.WithModule("api").Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
}
