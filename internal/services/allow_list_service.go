package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/domaingate/internal/models"
)

// ErrDomainNotFound indicates the requested domain is not on the allow-list.
var ErrDomainNotFound = errors.New("allow list service: domain not found")

// lookupChunk bounds the size of IN (...) lists sent to the database.
const lookupChunk = 500

// AllowListService manages the set of domains permitted to receive a redirect.
type AllowListService struct {
	db *gorm.DB
}

// NewAllowListService constructs an AllowListService using the provided database handle.
func NewAllowListService(db *gorm.DB) (*AllowListService, error) {
	if db == nil {
		return nil, errors.New("allow list service: db is required")
	}
	return &AllowListService{db: db}, nil
}

// Exists reports whether domain is on the allow-list. Lookups are case-insensitive.
func (s *AllowListService) Exists(ctx context.Context, domain string) (bool, error) {
	ctx = ensureContext(ctx)

	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.AllowedDomain{}).
		Where("domain = ?", domain).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("allow list service: lookup domain: %w", err)
	}
	return count > 0, nil
}

// AddIfAbsent inserts domain unless it is already present. It reports whether a row was added.
func (s *AllowListService) AddIfAbsent(ctx context.Context, domain, addedBy string) (bool, error) {
	ctx = ensureContext(ctx)

	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false, errors.New("allow list service: domain is required")
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "domain"}}, DoNothing: true}).
		Create(&models.AllowedDomain{Domain: domain, AddedBy: strings.TrimSpace(addedBy)})
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return false, nil
		}
		return false, fmt.Errorf("allow list service: add domain: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// BulkInsertIfAbsent inserts every domain not yet present using one existence query
// per chunk followed by a batched insert. It returns the added and skipped domains
// in input order.
func (s *AllowListService) BulkInsertIfAbsent(ctx context.Context, domains []string, addedBy string) (added, skipped []string, err error) {
	ctx = ensureContext(ctx)

	domains = normaliseDomains(domains)
	if len(domains) == 0 {
		return nil, nil, nil
	}

	existing := make(map[string]struct{}, len(domains))
	for _, chunk := range chunkStrings(domains, lookupChunk) {
		var found []string
		if err := s.db.WithContext(ctx).
			Model(&models.AllowedDomain{}).
			Where("domain IN ?", chunk).
			Pluck("domain", &found).Error; err != nil {
			return nil, nil, fmt.Errorf("allow list service: lookup existing domains: %w", err)
		}
		for _, d := range found {
			existing[d] = struct{}{}
		}
	}

	now := time.Now().UTC()
	addedBy = strings.TrimSpace(addedBy)
	records := make([]models.AllowedDomain, 0, len(domains))
	for _, domain := range domains {
		if _, ok := existing[domain]; ok {
			skipped = append(skipped, domain)
			continue
		}
		added = append(added, domain)
		records = append(records, models.AllowedDomain{Domain: domain, AddedAt: now, AddedBy: addedBy})
	}

	if len(records) == 0 {
		return added, skipped, nil
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "domain"}}, DoNothing: true}).
		CreateInBatches(&records, lookupChunk).Error; err != nil {
		return nil, nil, fmt.Errorf("allow list service: bulk insert domains: %w", err)
	}
	return added, skipped, nil
}

// Delete removes a single domain.
func (s *AllowListService) Delete(ctx context.Context, domain string) error {
	ctx = ensureContext(ctx)

	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ErrDomainNotFound
	}

	result := s.db.WithContext(ctx).Where("domain = ?", domain).Delete(&models.AllowedDomain{})
	if result.Error != nil {
		return fmt.Errorf("allow list service: delete domain: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDomainNotFound
	}
	return nil
}

// BulkDelete removes the supplied domains and returns the number of rows deleted.
func (s *AllowListService) BulkDelete(ctx context.Context, domains []string) (int64, error) {
	ctx = ensureContext(ctx)

	domains = normaliseDomains(domains)
	if len(domains) == 0 {
		return 0, nil
	}

	var deleted int64
	for _, chunk := range chunkStrings(domains, lookupChunk) {
		result := s.db.WithContext(ctx).Where("domain IN ?", chunk).Delete(&models.AllowedDomain{})
		if result.Error != nil {
			return deleted, fmt.Errorf("allow list service: bulk delete domains: %w", result.Error)
		}
		deleted += result.RowsAffected
	}
	return deleted, nil
}

// DeleteAll empties the allow-list.
func (s *AllowListService) DeleteAll(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.AllowedDomain{})
	if result.Error != nil {
		return 0, fmt.Errorf("allow list service: delete all domains: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// List returns a page of allow-list entries, newest first. Search matches domain
// and provenance case-insensitively.
func (s *AllowListService) List(ctx context.Context, opts ListOptions) ([]models.AllowedDomain, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := normalisePage(opts.Page, opts.PerPage)

	query := s.db.WithContext(ctx).Model(&models.AllowedDomain{})
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := likePattern(search)
		like := "LIKE ? ESCAPE '" + likeEscape + "'"
		query = query.Where("LOWER(domain) "+like+" OR LOWER(added_by) "+like, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("allow list service: count domains: %w", err)
	}

	var domains []models.AllowedDomain
	if err := query.
		Order("added_at DESC").
		Order("domain ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&domains).Error; err != nil {
		return nil, 0, fmt.Errorf("allow list service: list domains: %w", err)
	}
	return domains, total, nil
}
