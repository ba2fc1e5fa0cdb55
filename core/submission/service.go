package submission

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
)

var (
	// errors
	ErrNotFound        = errors.New("submission not found")
	ErrAlreadyReviewed = errors.New("submission has already been reviewed")

	errAmountNotPositive = errors.New("amount paid must be greater than zero")
	errReceiptType       = errors.New("file type not allowed; allowed types: .jpg, .jpeg, .png, .pdf")
	errReceiptTooLarge   = errors.New("file too large; maximum size: 10 MB")
	errNoteRequired      = errors.New("a note explaining the rejection is required")
	errBadStatusFilter   = errors.New("invalid status filter")
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Submission, error)
		// ReviewSubmission transitions the submission to a terminal status iff its
		// current status is still pending, atomically (compare-and-set). A lost
		// race yields ErrAlreadyReviewed; a missing row yields ErrNotFound.
		ReviewSubmission(ctx context.Context, id, status, note, reviewedBy string, reviewedAt time.Time) (Submission, error)
	}

	Service struct {
		repo      Repository
		catSvc    *category.Service
		fileStore core.FileStorage
	}
)

func NewService(repo Repository, catSvc *category.Service, fileStore core.FileStorage) *Service {
	return &Service{repo: repo, catSvc: catSvc, fileStore: fileStore}
}

// Create records an anonymous payment submission against the category owning
// the given public token. The receipt is uploaded before the row is persisted
// so that a failed upload never leaves a row pointing at a missing object.
func (svc *Service) Create(ctx context.Context, token string, ns NewSubmission, receipt Receipt) (Submission, error) {
	cat, err := svc.catSvc.GetByToken(ctx, token)
	if err != nil {
		return Submission{}, err
	}
	now := time.Now().UTC()
	if !cat.IsActive {
		return Submission{}, category.ErrInactive
	}
	if cat.IsExpired(now) {
		return Submission{}, category.ErrExpired
	}
	if err := receipt.Validate(core.Conf.Storage.MaxUploadSize); err != nil {
		return Submission{}, err
	}

	id := uuid.New().String()
	key := receiptKey(cat.ID, id, receipt.Filename, now)
	if err := svc.fileStore.Put(ctx, key, receipt.Content, receipt.Size, receipt.ContentType); err != nil {
		return Submission{}, core.NewUpstreamStorageError(err)
	}

	sub := Submission{
		ID:           id,
		CategoryID:   cat.ID,
		StudentName:  ns.StudentName,
		StudentPhone: ns.StudentPhone,
		AmountPaid:   ns.AmountPaid,
		ReceiptKey:   key,
		Status:       StatusPending,
		SubmittedAt:  now,
	}
	return svc.repo.CreateSubmission(ctx, sub)
}

// Confirm transitions a pending submission to confirmed. The note is optional.
func (svc *Service) Confirm(ctx context.Context, id, adminID, note string) (Info, error) {
	return svc.review(ctx, id, adminID, StatusConfirmed, core.CleanString(note))
}

// Reject transitions a pending submission to rejected. A non-blank note is mandatory.
func (svc *Service) Reject(ctx context.Context, id, adminID, note string) (Info, error) {
	note = core.CleanString(note)
	if note == "" {
		return Info{}, core.NewValidationError(
			errNoteRequired,
			core.FieldError{Field: "admin_note", Error: errNoteRequired.Error()},
		)
	}
	return svc.review(ctx, id, adminID, StatusRejected, note)
}

func (svc *Service) review(ctx context.Context, id, adminID, status, note string) (Info, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Info{}, err
	}
	// ownership is re-verified on every mutating call
	if _, err := svc.catSvc.CheckOwnership(ctx, sub.CategoryID, adminID); err != nil {
		return Info{}, err
	}
	// the repository enforces this again atomically; this is the fast path
	if sub.Status != StatusPending {
		return Info{}, ErrAlreadyReviewed
	}

	sub, err = svc.repo.ReviewSubmission(ctx, id, status, note, adminID, time.Now().UTC())
	if err != nil {
		return Info{}, err
	}
	return svc.withSignedURL(ctx, sub)
}

// Query returns the submissions of an owned category, most recent first,
// optionally filtered by status.
func (svc *Service) Query(ctx context.Context, categoryID, adminID string, statusFilter string) ([]Info, error) {
	if _, err := svc.catSvc.CheckOwnership(ctx, categoryID, adminID); err != nil {
		return nil, err
	}
	statusFilter = core.CleanString(statusFilter, true /* lower */)
	if statusFilter != "" && !ValidStatus(statusFilter) {
		return nil, core.NewValidationError(
			errBadStatusFilter,
			core.FieldError{Field: "status_filter", Error: errBadStatusFilter.Error()},
		)
	}

	subs, err := svc.repo.QuerySubmissions(ctx,
		QueryFilter{CategoryID: categoryID, Status: statusFilter},
		core.DBOrdering{Field: "submitted_at"},
	)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(subs))
	for _, sub := range subs {
		info, err := svc.withSignedURL(ctx, sub)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Get returns a single submission of an owned category.
func (svc *Service) Get(ctx context.Context, id, adminID string) (Info, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Info{}, err
	}
	if _, err := svc.catSvc.CheckOwnership(ctx, sub.CategoryID, adminID); err != nil {
		return Info{}, err
	}
	return svc.withSignedURL(ctx, sub)
}

var csvHeader = []string{
	"ID", "Student Name", "Phone", "Amount Paid", "Status",
	"Submitted At", "Reviewed At", "Reviewed By", "Admin Note", "Receipt Key",
}

// ExportCSV streams all submissions of an owned category to w as CSV,
// oldest first, for recordkeeping.
func (svc *Service) ExportCSV(ctx context.Context, categoryID, adminID string, w io.Writer) error {
	if _, err := svc.catSvc.CheckOwnership(ctx, categoryID, adminID); err != nil {
		return err
	}
	subs, err := svc.repo.QuerySubmissions(ctx,
		QueryFilter{CategoryID: categoryID},
		core.DBOrdering{Field: "submitted_at", Ascending: true},
	)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return pkgerrors.Wrap(err, "writing CSV header")
	}
	for _, sub := range subs {
		var reviewedAt string
		if sub.ReviewedAt != nil {
			reviewedAt = sub.ReviewedAt.Format(time.RFC3339)
		}
		row := []string{
			sub.ID,
			sub.StudentName,
			sub.StudentPhone,
			sub.AmountPaid.String(),
			sub.Status,
			sub.SubmittedAt.Format(time.RFC3339),
			reviewedAt,
			sub.ReviewedBy,
			sub.AdminNote,
			sub.ReceiptKey,
		}
		if err := cw.Write(row); err != nil {
			return pkgerrors.Wrap(err, "writing CSV row")
		}
	}
	cw.Flush()
	return pkgerrors.Wrap(cw.Error(), "flushing CSV")
}

func (svc *Service) withSignedURL(ctx context.Context, sub Submission) (Info, error) {
	url, err := svc.fileStore.SignedURL(ctx, sub.ReceiptKey, core.Conf.Storage.SignedURLExpirationDelta)
	if err != nil {
		return Info{}, core.NewUpstreamStorageError(err)
	}
	return Info{Submission: sub, ReceiptSignedURL: url}, nil
}

// receiptKey namespaces stored receipts by category and submission.
func receiptKey(categoryID, submissionID, filename string, now time.Time) string {
	safe := strings.ReplaceAll(filename, " ", "_")
	return fmt.Sprintf("receipts/%s/%s/%s_%s", categoryID, submissionID, now.Format("20060102_150405"), safe)
}
