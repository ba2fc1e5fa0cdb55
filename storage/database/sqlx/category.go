package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
)

type categoryRow struct {
	ID             string              `db:"id"`
	AdminID        string              `db:"admin_id"`
	Title          string              `db:"title"`
	Description    null.String         `db:"description"`
	AmountExpected decimal.NullDecimal `db:"amount_expected"`
	PublicToken    string              `db:"public_token"`
	IsActive       bool                `db:"is_active"`
	ExpiresAt      null.Time           `db:"expires_at"`
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
}

func (r categoryRow) toDomain() category.Category {
	cat := category.Category{
		ID:          r.ID,
		AdminID:     r.AdminID,
		Title:       r.Title,
		Description: r.Description.String,
		PublicToken: r.PublicToken,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.AmountExpected.Valid {
		amount := r.AmountExpected.Decimal
		cat.AmountExpected = &amount
	}
	if r.ExpiresAt.Valid {
		expiresAt := r.ExpiresAt.Time
		cat.ExpiresAt = &expiresAt
	}
	return cat
}

func nullAmount(amount *decimal.Decimal) decimal.NullDecimal {
	if amount == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *amount, Valid: true}
}

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

type categoryRepository struct {
	db *sqlx.DB
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *sql.DB) *categoryRepository {
	return &categoryRepository{db: sqlx.NewDb(db, "postgres")}
}

func trapCategoryNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return category.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo categoryRepository) CreateCategory(ctx context.Context, cat category.Category) (category.Category, error) {
	if cat.ID == "" {
		cat.ID = uuid.New().String()
	}
	query := `
		INSERT INTO category (id, admin_id, title, description, amount_expected, public_token, is_active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, query,
		cat.ID, cat.AdminID, cat.Title, null.NewString(cat.Description, cat.Description != ""),
		nullAmount(cat.AmountExpected), cat.PublicToken, cat.IsActive, nullTimePtr(cat.ExpiresAt),
		cat.CreatedAt, cat.UpdatedAt,
	)
	if err != nil {
		return category.Category{}, errors.Wrap(err, "inserting category")
	}
	return cat, nil
}

func (repo categoryRepository) QueryCategories(ctx context.Context, adminID string, ordering ...core.DBOrdering) ([]category.Category, error) {
	query := `SELECT * FROM category WHERE admin_id = $1`
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []categoryRow
	if err := repo.db.SelectContext(ctx, &rows, query, adminID); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	cats := make([]category.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, row.toDomain())
	}
	return cats, nil
}

func (repo categoryRepository) GetCategory(ctx context.Context, filter category.GetFilter) (category.Category, error) {
	var row categoryRow
	var err error

	if filter.ID != "" {
		if _, err = uuid.Parse(filter.ID); err != nil {
			return category.Category{}, category.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM category WHERE id = $1`, filter.ID)
		if err != nil {
			return category.Category{}, trapCategoryNoRowsErr(err, "finding category by ID")
		}
	} else {
		// exact equality match only; the token is the sole public lookup key
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM category WHERE public_token = $1`, filter.PublicToken)
		if err != nil {
			return category.Category{}, trapCategoryNoRowsErr(err, "finding category by token")
		}
	}
	return row.toDomain(), nil
}

func (repo categoryRepository) UpdateCategory(ctx context.Context, cat category.Category) (category.Category, error) {
	// the public token and owner are immutable and deliberately absent here
	query := `
		UPDATE category
		SET title = $1, description = $2, amount_expected = $3, is_active = $4, expires_at = $5, updated_at = $6
		WHERE id = $7`
	res, err := repo.db.ExecContext(ctx, query,
		cat.Title, null.NewString(cat.Description, cat.Description != ""), nullAmount(cat.AmountExpected),
		cat.IsActive, nullTimePtr(cat.ExpiresAt), cat.UpdatedAt, cat.ID,
	)
	if err != nil {
		return category.Category{}, errors.Wrap(err, "updating category")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return category.Category{}, category.ErrNotFound
	}
	return cat, nil
}

func (repo categoryRepository) CountSubmissions(ctx context.Context, categoryIDs ...string) (map[string]category.StatusCounts, error) {
	counts := make(map[string]category.StatusCounts, len(categoryIDs))
	if len(categoryIDs) == 0 {
		return counts, nil
	}

	query, args, err := sqlx.In(
		`SELECT category_id, status, COUNT(*) AS count
		 FROM payment_submission WHERE category_id IN (?)
		 GROUP BY category_id, status`, categoryIDs)
	if err != nil {
		return nil, errors.Wrap(err, "expanding submission counts query")
	}

	rows, err := repo.db.QueryContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "counting submissions")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var categoryID, status string
		var count int
		if err := rows.Scan(&categoryID, &status, &count); err != nil {
			return nil, errors.Wrap(err, "scanning submission counts")
		}
		c := counts[categoryID]
		switch status {
		case submission.StatusPending:
			c.Pending = count
		case submission.StatusConfirmed:
			c.Confirmed = count
		case submission.StatusRejected:
			c.Rejected = count
		}
		counts[categoryID] = c
	}
	return counts, errors.Wrap(rows.Err(), "counting submissions")
}
