package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/internal/geo"
	"github.com/charlesng35/domaingate/internal/useragent"
)

const (
	visitorInfoLocal   = "Location: Local • ISP: Unknown"
	visitorInfoUnknown = "Location: Unknown • ISP: Unknown"
)

// Locator resolves an IP address to a location. Implementations never fail.
type Locator interface {
	Locate(ctx context.Context, ip string) geo.Location
}

// VisitorHandler describes the calling client.
type VisitorHandler struct {
	locator Locator
}

// NewVisitorHandler constructs a visitor handler. A nil locator reports every
// public address as unknown.
func NewVisitorHandler(locator Locator) *VisitorHandler {
	return &VisitorHandler{locator: locator}
}

type visitorResponse struct {
	IP       string            `json:"ip"`
	Info     string            `json:"info"`
	Location geo.Location      `json:"location"`
	Client   useragent.Details `json:"client"`
}

// Info returns the caller's coarse location and client details.
func (h *VisitorHandler) Info(c *gin.Context) {
	ip := c.ClientIP()
	resp := visitorResponse{
		IP:       ip,
		Info:     visitorInfoUnknown,
		Location: geo.Unknown(ip),
		Client:   useragent.Parse(userAgent(c)),
	}

	switch {
	case geo.IsLocal(ip):
		resp.Info = visitorInfoLocal
	case h.locator != nil:
		loc := h.locator.Locate(requestContext(c), ip)
		resp.Location = loc
		if loc.Known() {
			resp.Info = describeLocation(loc)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func describeLocation(loc geo.Location) string {
	isp := loc.ISP
	if isp == "" || isp == geo.UnknownValue {
		isp = loc.Org
	}
	if isp == "" {
		isp = geo.UnknownValue
	}
	return fmt.Sprintf("%s, %s • %s • ISP: %s", loc.City, loc.Region, loc.Country, isp)
}
