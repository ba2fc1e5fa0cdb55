package submission

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/malipo/core"
)

// Statuses. A Submission starts as pending; confirmed and rejected are
// terminal: no transition out of them is ever permitted.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

var AllStatuses = []string{StatusPending, StatusConfirmed, StatusRejected}

func ValidStatus(status string) bool {
	for _, s := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Submission is one student's payment-proof record. Rows are append/transition
// only: they are reviewed at most once and never deleted.
type Submission struct {
	ID           string          `json:"id"`
	CategoryID   string          `json:"category_id"`
	StudentName  string          `json:"student_name"`
	StudentPhone string          `json:"student_phone"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	ReceiptKey   string          `json:"receipt_key"`
	Status       string          `json:"status"`
	AdminNote    string          `json:"admin_note,omitempty"`
	SubmittedAt  time.Time       `json:"submitted_at"` // UTC
	ReviewedAt   *time.Time      `json:"reviewed_at"`
	ReviewedBy   string          `json:"reviewed_by,omitempty"`
}

// Info is a Submission together with a time-limited URL for its receipt.
type Info struct {
	Submission
	ReceiptSignedURL string `json:"receipt_signed_url,omitempty"`
}

// NewSubmission contains the form fields of an anonymous payment submission.
type NewSubmission struct {
	StudentName  string          `json:"student_name" validate:"required,notblank,min=2,max=255"`
	StudentPhone string          `json:"student_phone" validate:"required,notblank,min=5,max=20"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
}

func (ns *NewSubmission) Validate() error {
	ns.StudentName = core.CleanString(ns.StudentName)
	ns.StudentPhone = core.CleanString(ns.StudentPhone)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if !ns.AmountPaid.IsPositive() {
		return core.NewValidationError(
			errAmountNotPositive,
			core.FieldError{Field: "amount_paid", Error: errAmountNotPositive.Error()},
		)
	}
	return nil
}

// Receipt is the uploaded payment-proof file.
type Receipt struct {
	Filename    string
	Size        int64
	ContentType string
	Content     io.Reader
}

var allowedReceiptExts = []string{".jpg", ".jpeg", ".png", ".pdf"}

// Validate checks the receipt's extension and size against the upload limits.
func (r *Receipt) Validate(maxSize int64) error {
	ext := strings.ToLower(filepath.Ext(r.Filename))
	var allowed bool
	for _, e := range allowedReceiptExts {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return core.NewValidationError(
			errReceiptType,
			core.FieldError{Field: "receipt", Error: errReceiptType.Error()},
		)
	}
	if r.Size > maxSize {
		return core.NewValidationError(
			errReceiptTooLarge,
			core.FieldError{Field: "receipt", Error: errReceiptTooLarge.Error()},
		)
	}
	return nil
}

// QueryFilter filters submission listings for one category.
type QueryFilter struct {
	CategoryID string
	Status     string `query:"status_filter"`
}
