package category

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/malipo/core"
)

// Category is a payment collection (e.g. "June Fees") owned by an admin.
// Its public token is the sole credential for anonymous submissions and is
// immutable once created. Categories are never hard-deleted; deactivation
// only stops new submissions.
type Category struct {
	ID             string           `json:"id"`
	AdminID        string           `json:"admin_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	AmountExpected *decimal.Decimal `json:"amount_expected"`
	PublicToken    string           `json:"public_token"`
	IsActive       bool             `json:"is_active"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"` // UTC
	UpdatedAt      time.Time        `json:"updated_at"` // UTC
}

func (c *Category) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// StatusCounts holds per-status submission tallies for a Category.
type StatusCounts struct {
	Pending   int `json:"pending_count"`
	Confirmed int `json:"confirmed_count"`
	Rejected  int `json:"rejected_count"`
}

// Info is a Category together with its submission counts, as served to admins.
type Info struct {
	Category
	StatusCounts
}

// PublicInfo is the subset of a Category exposed on the anonymous
// submission form. The token itself and the owner are never echoed back.
type PublicInfo struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	AmountExpected *decimal.Decimal `json:"amount_expected"`
}

func (c *Category) Public() PublicInfo {
	return PublicInfo{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		AmountExpected: c.AmountExpected,
	}
}

// NewCategory contains information needed to create a new Category.
type NewCategory struct {
	Title          string           `json:"title" validate:"required,notblank,max=255"`
	Description    string           `json:"description"`
	AmountExpected *decimal.Decimal `json:"amount_expected"`
	ExpiresAt      *time.Time       `json:"expires_at"`
}

func (nc *NewCategory) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)

	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	return validateAmount(nc.AmountExpected)
}

// UpdateCategory defines what may be modified on an existing Category;
// nil fields are left unchanged. The public token and owner are immutable.
type UpdateCategory struct {
	Title          *string          `json:"title" validate:"omitempty,max=255"`
	Description    *string          `json:"description"`
	AmountExpected *decimal.Decimal `json:"amount_expected"`
	ExpiresAt      *time.Time       `json:"expires_at"`
}

func (uc *UpdateCategory) Validate(ctx context.Context) error {
	if uc.Title != nil {
		title := core.CleanString(*uc.Title)
		// a provided title may not be cleared; `omitempty` cannot tell a
		// blank value from an absent one once cleaned
		if title == "" {
			return core.NewValidationError(
				errTitleBlank,
				core.FieldError{Field: "title", Error: errTitleBlank.Error()},
			)
		}
		uc.Title = &title
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}

	if err := core.Validate.Struct(uc); err != nil {
		return err
	}
	return validateAmount(uc.AmountExpected)
}

func validateAmount(amount *decimal.Decimal) error {
	if amount != nil && amount.IsNegative() {
		return core.NewValidationError(
			errAmountNegative,
			core.FieldError{Field: "amount_expected", Error: errAmountNegative.Error()},
		)
	}
	return nil
}
