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
	"github.com/trezcool/malipo/core/submission"
)

type submissionRow struct {
	ID           string          `db:"id"`
	CategoryID   string          `db:"category_id"`
	StudentName  string          `db:"student_name"`
	StudentPhone string          `db:"student_phone"`
	AmountPaid   decimal.Decimal `db:"amount_paid"`
	ReceiptKey   string          `db:"receipt_key"`
	Status       string          `db:"status"`
	AdminNote    null.String     `db:"admin_note"`
	SubmittedAt  time.Time       `db:"submitted_at"`
	ReviewedAt   null.Time       `db:"reviewed_at"`
	ReviewedBy   null.String     `db:"reviewed_by"`
}

func (r submissionRow) toDomain() submission.Submission {
	sub := submission.Submission{
		ID:           r.ID,
		CategoryID:   r.CategoryID,
		StudentName:  r.StudentName,
		StudentPhone: r.StudentPhone,
		AmountPaid:   r.AmountPaid,
		ReceiptKey:   r.ReceiptKey,
		Status:       r.Status,
		AdminNote:    r.AdminNote.String,
		SubmittedAt:  r.SubmittedAt,
		ReviewedBy:   r.ReviewedBy.String,
	}
	if r.ReviewedAt.Valid {
		reviewedAt := r.ReviewedAt.Time
		sub.ReviewedAt = &reviewedAt
	}
	return sub
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sql.DB) *submissionRepository {
	return &submissionRepository{db: sqlx.NewDb(db, "postgres")}
}

func trapSubmissionNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return submission.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	query := `
		INSERT INTO payment_submission
			(id, category_id, student_name, student_phone, amount_paid, receipt_key, status, admin_note, submitted_at, reviewed_at, reviewed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.db.ExecContext(ctx, query,
		sub.ID, sub.CategoryID, sub.StudentName, sub.StudentPhone, sub.AmountPaid, sub.ReceiptKey,
		sub.Status, null.NewString(sub.AdminNote, sub.AdminNote != ""), sub.SubmittedAt,
		nullTimePtr(sub.ReviewedAt), null.NewString(sub.ReviewedBy, sub.ReviewedBy != ""),
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return submission.Submission{}, submission.ErrNotFound
	}
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM payment_submission WHERE id = $1`, id); err != nil {
		return submission.Submission{}, trapSubmissionNoRowsErr(err, "finding submission by ID")
	}
	return row.toDomain(), nil
}

func (repo submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter, ordering ...core.DBOrdering) ([]submission.Submission, error) {
	query := `SELECT * FROM payment_submission WHERE category_id = $1`
	args := []interface{}{filter.CategoryID}

	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toDomain())
	}
	return subs, nil
}

// ReviewSubmission performs the terminal transition as a single conditional
// UPDATE so that concurrent reviews of the same submission cannot both win.
func (repo submissionRepository) ReviewSubmission(ctx context.Context, id, status, note, reviewedBy string, reviewedAt time.Time) (submission.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return submission.Submission{}, submission.ErrNotFound
	}

	query := `
		UPDATE payment_submission
		SET status = $1, admin_note = $2, reviewed_at = $3, reviewed_by = $4
		WHERE id = $5 AND status = $6`
	res, err := repo.db.ExecContext(ctx, query,
		status, null.NewString(note, note != ""), reviewedAt, reviewedBy, id, submission.StatusPending,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "reviewing submission")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "reviewing submission")
	}
	if n == 0 {
		// either the row is gone or another review won the race
		if _, err := repo.GetSubmission(ctx, id); err != nil {
			return submission.Submission{}, err
		}
		return submission.Submission{}, submission.ErrAlreadyReviewed
	}
	return repo.GetSubmission(ctx, id)
}
