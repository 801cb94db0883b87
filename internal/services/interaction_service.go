package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/decoyworks/honeypot/internal/fingerprint"
	"github.com/decoyworks/honeypot/internal/geoip"
	"github.com/decoyworks/honeypot/internal/models"
)

const maxInteractionField = 50

var (
	ErrInteractionCategory = errors.New("category is required and must be at most 50 characters")
	ErrInteractionAction   = errors.New("action is required and must be at most 50 characters")
)

// InteractionInput is a client-side event reported by a decoy page.
type InteractionInput struct {
	Category string         `json:"category"`
	Action   string         `json:"action"`
	Details  map[string]any `json:"details"`
}

// Validate checks category and action lengths.
func (in InteractionInput) Validate() error {
	if c := strings.TrimSpace(in.Category); c == "" || len(c) > maxInteractionField {
		return ErrInteractionCategory
	}
	if a := strings.TrimSpace(in.Action); a == "" || len(a) > maxInteractionField {
		return ErrInteractionAction
	}
	return nil
}

// InteractionFilter narrows List.
type InteractionFilter struct {
	Category string
	Action   string
	IP       string
	Page     int
	PageSize int
}

// InteractionPage is one page of interactions.
type InteractionPage struct {
	Items    []models.Interaction `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// InteractionService records and lists decoy page interactions.
type InteractionService struct {
	db      *gorm.DB
	geo     geoip.Lookup
	timeout time.Duration
	now     func() time.Time
}

// NewInteractionService returns an InteractionService. geo may be nil.
func NewInteractionService(db *gorm.DB, geo geoip.Lookup, storeTimeout time.Duration) *InteractionService {
	return &InteractionService{db: db, geo: geo, timeout: storeTimeout, now: utcNow}
}

// Log validates and stores one interaction.
func (s *InteractionService) Log(ctx context.Context, req fingerprint.RequestSummary, in InteractionInput) (*models.Interaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	geo := geoip.Info{ASN: "Unknown", Org: "Unknown", Country: "Unknown"}
	if s.geo != nil {
		geo = s.geo.Lookup(ctx, req.ClientIP)
	}

	rec := &models.Interaction{
		Category:    strings.TrimSpace(in.Category),
		Action:      strings.TrimSpace(in.Action),
		Path:        req.Path,
		Method:      req.Method,
		IP:          req.ClientIP,
		UserAgent:   req.UserAgent(),
		Fingerprint: fingerprint.Compute(req),
		ASN:         geo.ASN,
		Org:         geo.Org,
		Country:     geo.Country,
		Details:     jsonColumn(detailsOrNil(in.Details)),
		Timestamp:   s.now(),
	}

	sctx, cancel := storeCtx(ctx, s.timeout)
	defer cancel()
	if err := s.db.WithContext(sctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func detailsOrNil(d map[string]any) any {
	if len(d) == 0 {
		return nil
	}
	return d
}

// List returns interactions newest first.
func (s *InteractionService) List(ctx context.Context, f InteractionFilter) (*InteractionPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}

	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Interaction{})
		if f.Category != "" {
			q = q.Where("category = ?", f.Category)
		}
		if f.Action != "" {
			q = q.Where("action = ?", f.Action)
		}
		if f.IP != "" {
			q = q.Where("ip = ?", f.IP)
		}
		return q
	}

	page := &InteractionPage{Page: f.Page, PageSize: f.PageSize}
	if err := scoped().Count(&page.Total).Error; err != nil {
		return nil, err
	}
	if err := scoped().Order("timestamp desc").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}
