package category

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/malipo/core"
)

var (
	// errors
	ErrNotFound = errors.New("category not found")
	ErrNotOwner = errors.New("category is owned by another admin")
	ErrInactive = errors.New("category is no longer active")
	ErrExpired  = errors.New("category has expired and is no longer accepting submissions")

	errAmountNegative = errors.New("expected amount cannot be negative")
	errTitleBlank     = errors.New("title cannot be blank")
)

type (
	// GetFilter filters a single-Category lookup; exactly one field should be set.
	GetFilter struct {
		ID          string
		PublicToken string
	}

	Repository interface {
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		// QueryCategories returns all categories owned by adminID.
		QueryCategories(ctx context.Context, adminID string, ordering ...core.DBOrdering) ([]Category, error)
		GetCategory(ctx context.Context, filter GetFilter) (Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		// CountSubmissions tallies submissions per status for each given category.
		CountSubmissions(ctx context.Context, categoryIDs ...string) (map[string]StatusCounts, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create generates the public token and persists a new active Category.
func (svc *Service) Create(ctx context.Context, adminID string, nc NewCategory) (Info, error) {
	token, err := GenerateToken()
	if err != nil {
		return Info{}, err
	}

	now := time.Now().UTC()
	cat := Category{
		AdminID:        adminID,
		Title:          nc.Title,
		Description:    nc.Description,
		AmountExpected: nc.AmountExpected,
		PublicToken:    token,
		IsActive:       true,
		ExpiresAt:      nc.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	cat, err = svc.repo.CreateCategory(ctx, cat)
	if err != nil {
		return Info{}, err
	}
	return Info{Category: cat}, nil
}

// Query returns the admin's categories, most recent first, with submission counts.
func (svc *Service) Query(ctx context.Context, adminID string) ([]Info, error) {
	cats, err := svc.repo.QueryCategories(ctx, adminID, core.DBOrdering{Field: "created_at"})
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return []Info{}, nil
	}

	ids := make([]string, 0, len(cats))
	for _, cat := range cats {
		ids = append(ids, cat.ID)
	}
	counts, err := svc.repo.CountSubmissions(ctx, ids...)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(cats))
	for _, cat := range cats {
		infos = append(infos, Info{Category: cat, StatusCounts: counts[cat.ID]})
	}
	return infos, nil
}

// Get returns a single owned Category with submission counts.
// Ownership is re-verified on every call.
func (svc *Service) Get(ctx context.Context, id, adminID string) (Info, error) {
	cat, err := svc.getOwned(ctx, id, adminID)
	if err != nil {
		return Info{}, err
	}
	counts, err := svc.repo.CountSubmissions(ctx, cat.ID)
	if err != nil {
		return Info{}, err
	}
	return Info{Category: cat, StatusCounts: counts[cat.ID]}, nil
}

// GetByToken resolves a Category by exact public token match, regardless of
// its active/expired state; callers enforce the state they need.
func (svc *Service) GetByToken(ctx context.Context, token string) (Category, error) {
	if token == "" {
		return Category{}, ErrNotFound
	}
	return svc.repo.GetCategory(ctx, GetFilter{PublicToken: token})
}

// Update modifies the provided fields of an owned Category.
func (svc *Service) Update(ctx context.Context, id, adminID string, uc UpdateCategory) (Info, error) {
	cat, err := svc.getOwned(ctx, id, adminID)
	if err != nil {
		return Info{}, err
	}

	if uc.Title != nil {
		cat.Title = *uc.Title
	}
	if uc.Description != nil {
		cat.Description = *uc.Description
	}
	if uc.AmountExpected != nil {
		cat.AmountExpected = uc.AmountExpected
	}
	if uc.ExpiresAt != nil {
		cat.ExpiresAt = uc.ExpiresAt
	}
	cat.UpdatedAt = time.Now().UTC()

	cat, err = svc.repo.UpdateCategory(ctx, cat)
	if err != nil {
		return Info{}, err
	}
	counts, err := svc.repo.CountSubmissions(ctx, cat.ID)
	if err != nil {
		return Info{}, err
	}
	return Info{Category: cat, StatusCounts: counts[cat.ID]}, nil
}

// SetActive toggles the soft-delete flag of an owned Category.
func (svc *Service) SetActive(ctx context.Context, id, adminID string, active bool) (Category, error) {
	cat, err := svc.getOwned(ctx, id, adminID)
	if err != nil {
		return Category{}, err
	}
	cat.IsActive = active
	cat.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCategory(ctx, cat)
}

// CheckOwnership verifies that adminID owns the category; it is re-checked at
// every mutating call site rather than cached.
func (svc *Service) CheckOwnership(ctx context.Context, id, adminID string) (Category, error) {
	return svc.getOwned(ctx, id, adminID)
}

func (svc *Service) getOwned(ctx context.Context, id, adminID string) (Category, error) {
	cat, err := svc.repo.GetCategory(ctx, GetFilter{ID: id})
	if err != nil {
		return Category{}, err
	}
	if cat.AdminID != adminID {
		return Category{}, ErrNotOwner
	}
	return cat, nil
}
