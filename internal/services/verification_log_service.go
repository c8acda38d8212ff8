package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/domaingate/internal/models"
)

// ErrLogNotFound indicates the requested verification log does not exist.
var ErrLogNotFound = errors.New("verification log service: log not found")

var logSearchColumns = []string{
	"email", "domain", "ip", "user_agent", "redirect_url",
	"ip_city", "ip_country", "ip_isp", "ip_org",
}

// VerificationLogService persists and queries verification attempts.
type VerificationLogService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewVerificationLogService constructs a VerificationLogService using the provided database handle.
func NewVerificationLogService(db *gorm.DB) (*VerificationLogService, error) {
	if db == nil {
		return nil, errors.New("verification log service: db is required")
	}
	return &VerificationLogService{db: db, now: time.Now}, nil
}

// Log stores a verification attempt.
func (s *VerificationLogService) Log(ctx context.Context, entry *models.VerificationLog) error {
	ctx = ensureContext(ctx)

	if entry == nil {
		return errors.New("verification log service: entry is required")
	}
	if strings.TrimSpace(entry.Email) == "" {
		return errors.New("verification log service: email is required")
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("verification log service: create log: %w", err)
	}
	return nil
}

// List returns a page of verification logs ordered newest first.
func (s *VerificationLogService) List(ctx context.Context, opts ListOptions) ([]models.VerificationLog, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := normalisePage(opts.Page, opts.PerPage)

	query := s.db.WithContext(ctx).Model(&models.VerificationLog{})
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := likePattern(search)
		clauses := make([]string, len(logSearchColumns))
		args := make([]any, len(logSearchColumns))
		for i, column := range logSearchColumns {
			clauses[i] = "LOWER(" + column + ") LIKE ? ESCAPE '" + likeEscape + "'"
			args[i] = pattern
		}
		query = query.Where(strings.Join(clauses, " OR "), args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("verification log service: count logs: %w", err)
	}

	var logs []models.VerificationLog
	if err := query.
		Order("timestamp DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("verification log service: list logs: %w", err)
	}
	return logs, total, nil
}

// Delete removes a single log by id.
func (s *VerificationLogService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return ErrLogNotFound
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.VerificationLog{})
	if result.Error != nil {
		return fmt.Errorf("verification log service: delete log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLogNotFound
	}
	return nil
}

// BulkDelete removes the supplied ids and returns the number of rows deleted.
func (s *VerificationLogService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	ctx = ensureContext(ctx)

	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	for _, chunk := range chunkStrings(ids, lookupChunk) {
		result := s.db.WithContext(ctx).Where("id IN ?", chunk).Delete(&models.VerificationLog{})
		if result.Error != nil {
			return deleted, fmt.Errorf("verification log service: bulk delete logs: %w", result.Error)
		}
		deleted += result.RowsAffected
	}
	return deleted, nil
}

// DeleteAll purges every verification log.
func (s *VerificationLogService) DeleteAll(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.VerificationLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("verification log service: delete all logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupOlderThan removes logs older than the supplied retention window (in days).
func (s *VerificationLogService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("verification log service: retentionDays must be positive")
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.VerificationLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("verification log service: cleanup logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
