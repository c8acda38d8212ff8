package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/mail"
	"github.com/charlesng35/domaingate/pkg/response"
)

// AbuseHandler accepts abuse reports and forwards them to the abuse mailbox.
type AbuseHandler struct {
	mailer    mail.Mailer
	recipient string
	now       func() time.Time
	log       *zap.Logger
}

// NewAbuseHandler constructs an abuse handler. Reports are only mailed when both
// mailer and recipient are set.
func NewAbuseHandler(mailer mail.Mailer, recipient string) *AbuseHandler {
	return &AbuseHandler{
		mailer:    mailer,
		recipient: strings.TrimSpace(recipient),
		now:       time.Now,
		log:       logger.WithModule("abuse"),
	}
}

type abuseReportRequest struct {
	IssueType   string `json:"issueType" validate:"notblank,max=64"`
	Description string `json:"description" validate:"required,min=10,max=1000"`
	Email       string `json:"email" validate:"omitempty,email"`
	Evidence    string `json:"evidence" validate:"omitempty,url,max=2048"`
	ReferenceID string `json:"referenceId" validate:"omitempty,max=128"`
}

// Report records an abuse report and returns its id. Delivery failures are
// logged and never surface to the reporter.
func (h *AbuseHandler) Report(c *gin.Context) {
	var req abuseReportRequest
	if !bindAndValidate(c, &req) {
		return
	}

	now := h.now().UTC()
	reportID := newReportID(now)

	h.log.Info("abuse report received",
		zap.String("report_id", reportID),
		zap.String("issue_type", req.IssueType),
		zap.String("reference_id", req.ReferenceID),
		zap.String("client_ip", c.ClientIP()),
	)

	if h.mailer != nil && h.recipient != "" {
		err := h.mailer.Send(context.WithoutCancel(requestContext(c)), mail.Message{
			To:      []string{h.recipient},
			ReplyTo: req.Email,
			Subject: "Abuse report " + reportID,
			Body:    formatAbuseReport(reportID, now, c.ClientIP(), req),
		})
		switch {
		case errors.Is(err, mail.ErrSMTPDisabled):
			h.log.Debug("abuse report not mailed, smtp disabled", zap.String("report_id", reportID))
		case err != nil:
			h.log.Warn("abuse report delivery failed", zap.String("report_id", reportID), zap.Error(err))
		}
	}

	response.Success(c, http.StatusOK, gin.H{"reportId": reportID})
}

// newReportID builds RPT-<base36 millis>-<6 random chars>, upper-cased.
func newReportID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return strings.ToUpper("RPT-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix)
}

func formatAbuseReport(reportID string, at time.Time, clientIP string, req abuseReportRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report ID: %s\n", reportID)
	fmt.Fprintf(&b, "Timestamp: %s\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "Issue Type: %s\n", req.IssueType)
	fmt.Fprintf(&b, "Reference ID: %s\n", orNotProvided(req.ReferenceID))
	fmt.Fprintf(&b, "Reporter Email: %s\n", orNotProvided(req.Email))
	fmt.Fprintf(&b, "Evidence URL: %s\n", orNotProvided(req.Evidence))
	fmt.Fprintf(&b, "Client IP: %s\n\n", orNotProvided(clientIP))
	b.WriteString("Description:\n")
	b.WriteString(req.Description)
	b.WriteString("\n")
	return b.String()
}

func orNotProvided(value string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return "Not provided"
}
