package submission_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
	"github.com/trezcool/malipo/storage/database/inmem"
	"github.com/trezcool/malipo/storage/files/dummy"
	"github.com/trezcool/malipo/tests"
)

type testEnv struct {
	svc       *submission.Service
	catRepo   category.Repository
	subRepo   submission.Repository
	fileStore *dummyfiles.Service
}

func setup(t *testing.T) testEnv {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	catRepo := inmemdb.NewCategoryRepository(db)
	subRepo := inmemdb.NewSubmissionRepository(db)
	fileStore := dummyfiles.NewService()
	return testEnv{
		svc:       submission.NewService(subRepo, category.NewService(catRepo), fileStore),
		catRepo:   catRepo,
		subRepo:   subRepo,
		fileStore: fileStore,
	}
}

func newForm(name string) submission.NewSubmission {
	return submission.NewSubmission{
		StudentName:  name,
		StudentPhone: "+243810000000",
		AmountPaid:   decimal.RequireFromString("25.50"),
	}
}

func newReceipt(filename string) submission.Receipt {
	content := []byte("%PDF-1.4 fake receipt")
	return submission.Receipt{
		Filename:    filename,
		Size:        int64(len(content)),
		ContentType: "application/pdf",
		Content:     bytes.NewReader(content),
	}
}

func TestService_Create(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)

	sub, err := env.svc.Create(ctx, cat.PublicToken, newForm("Alice K"), newReceipt("my receipt.pdf"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if sub.Status != submission.StatusPending {
		t.Errorf("Create() status = %s, want pending", sub.Status)
	}
	if sub.CategoryID != cat.ID {
		t.Errorf("Create() categoryID = %s, want %s", sub.CategoryID, cat.ID)
	}
	if sub.ReviewedAt != nil || sub.ReviewedBy != "" {
		t.Error("Create() new submission carries review stamps")
	}

	// the receipt was uploaded under a namespaced, whitespace-free key
	prefix := fmt.Sprintf("receipts/%s/%s/", cat.ID, sub.ID)
	if !strings.HasPrefix(sub.ReceiptKey, prefix) {
		t.Errorf("Create() receiptKey = %s, want prefix %s", sub.ReceiptKey, prefix)
	}
	if !strings.HasSuffix(sub.ReceiptKey, "_my_receipt.pdf") {
		t.Errorf("Create() receiptKey = %s, want filename with spaces replaced", sub.ReceiptKey)
	}
	if !env.fileStore.Has(sub.ReceiptKey) {
		t.Error("Create() did not store the receipt")
	}
}

func TestService_Create_categoryState(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	inactive := testutil.CreateCategory(t, env.catRepo, "admin-1", "Closed", false, nil)
	past := time.Now().UTC().Add(-time.Hour)
	expired := testutil.CreateCategory(t, env.catRepo, "admin-1", "Expired", true, &past)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "unknown token", token: "nope", wantErr: category.ErrNotFound},
		{name: "inactive category", token: inactive.PublicToken, wantErr: category.ErrInactive},
		{name: "expired category", token: expired.PublicToken, wantErr: category.ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, tt.token, newForm("Alice"), newReceipt("ok.pdf"))
			if err != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	// none of the rejected submissions left a file behind
	if n := env.fileStore.Len(); n != 0 {
		t.Errorf("fileStore.Len() = %d, want 0", n)
	}
}

func TestService_Create_receiptValidation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)

	t.Run("disallowed extension", func(t *testing.T) {
		_, err := env.svc.Create(ctx, cat.PublicToken, newForm("Alice"), newReceipt("virus.exe"))
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Create() error = %v, want ValidationError", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		receipt := newReceipt("big.pdf")
		receipt.Size = core.Conf.Storage.MaxUploadSize + 1
		_, err := env.svc.Create(ctx, cat.PublicToken, newForm("Alice"), receipt)
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Create() error = %v, want ValidationError", err)
		}
	})

	if n := env.fileStore.Len(); n != 0 {
		t.Errorf("fileStore.Len() = %d, want 0", n)
	}
}

func TestService_Create_uploadFailure(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)
	env.fileStore.PutErr = errors.New("connection refused")

	_, err := env.svc.Create(ctx, cat.PublicToken, newForm("Alice"), newReceipt("ok.pdf"))
	if !core.IsUpstreamStorage(err) {
		t.Fatalf("Create() error = %v, want upstream storage error", err)
	}

	// a failed upload never records a row
	subs, err := env.subRepo.QuerySubmissions(ctx, submission.QueryFilter{CategoryID: cat.ID})
	if err != nil {
		t.Fatalf("QuerySubmissions() error = %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("QuerySubmissions() len = %d, want 0", len(subs))
	}
}

func TestService_Confirm(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)
	sub := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Alice", "25.50", submission.StatusPending)

	got, err := env.svc.Confirm(ctx, sub.ID, "admin-1", "" /* note is optional */)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if got.Status != submission.StatusConfirmed {
		t.Errorf("Confirm() status = %s, want confirmed", got.Status)
	}
	if got.ReviewedAt == nil || got.ReviewedBy != "admin-1" {
		t.Error("Confirm() did not stamp the review")
	}
	if got.ReceiptSignedURL == "" {
		t.Error("Confirm() did not attach a signed receipt URL")
	}
}

func TestService_Reject(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)
	sub := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Alice", "25.50", submission.StatusPending)

	// a rejection without an explanation is not allowed
	for _, note := range []string{"", "   "} {
		_, err := env.svc.Reject(ctx, sub.ID, "admin-1", note)
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Reject(%q) error = %v, want ValidationError", note, err)
		}
	}
	// the failed attempts did not transition the submission
	if got, _ := env.subRepo.GetSubmission(ctx, sub.ID); got.Status != submission.StatusPending {
		t.Fatalf("Reject() with blank note transitioned the submission to %s", got.Status)
	}

	got, err := env.svc.Reject(ctx, sub.ID, "admin-1", "amount does not match the receipt")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if got.Status != submission.StatusRejected {
		t.Errorf("Reject() status = %s, want rejected", got.Status)
	}
	if got.AdminNote == "" || got.ReviewedAt == nil || got.ReviewedBy != "admin-1" {
		t.Error("Reject() did not stamp the review")
	}
}

func TestService_review_terminalStates(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)

	confirmed := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Alice", "10", submission.StatusConfirmed)
	rejected := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Bob", "10", submission.StatusRejected)

	tests := []struct {
		name string
		call func() error
	}{
		{"confirm a confirmed", func() error { _, err := env.svc.Confirm(ctx, confirmed.ID, "admin-1", ""); return err }},
		{"reject a confirmed", func() error { _, err := env.svc.Reject(ctx, confirmed.ID, "admin-1", "nope"); return err }},
		{"confirm a rejected", func() error { _, err := env.svc.Confirm(ctx, rejected.ID, "admin-1", ""); return err }},
		{"reject a rejected", func() error { _, err := env.svc.Reject(ctx, rejected.ID, "admin-1", "nope"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != submission.ErrAlreadyReviewed {
				t.Errorf("error = %v, want ErrAlreadyReviewed", err)
			}
		})
	}
}

func TestService_review_ownership(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)
	sub := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Alice", "10", submission.StatusPending)

	if _, err := env.svc.Confirm(ctx, sub.ID, "admin-2", ""); err != category.ErrNotOwner {
		t.Errorf("Confirm() error = %v, want ErrNotOwner", err)
	}
	if _, err := env.svc.Get(ctx, sub.ID, "admin-2"); err != category.ErrNotOwner {
		t.Errorf("Get() error = %v, want ErrNotOwner", err)
	}
	// still pending
	if got, _ := env.subRepo.GetSubmission(ctx, sub.ID); got.Status != submission.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

// Concurrent reviews of the same pending submission: exactly one must win.
func TestService_review_race(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)
	sub := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Alice", "10", submission.StatusPending)

	const attempts = 20
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = env.svc.Confirm(ctx, sub.ID, "admin-1", "")
			} else {
				_, errs[i] = env.svc.Reject(ctx, sub.ID, "admin-1", "duplicate")
			}
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch err {
		case nil:
			wins++
		case submission.ErrAlreadyReviewed: // expected for the losers
		default:
			t.Errorf("unexpected error = %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}

	got, err := env.subRepo.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission() error = %v", err)
	}
	if got.Status == submission.StatusPending {
		t.Error("submission is still pending after the race")
	}
}

func TestService_Query(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)
	now := time.Now().UTC()
	oldest := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Alice", "10", submission.StatusPending, now.Add(-2*time.Hour))
	middle := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Bob", "10", submission.StatusConfirmed, now.Add(-time.Hour))
	latest := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Carol", "10", submission.StatusPending, now)

	subs, err := env.svc.Query(ctx, cat.ID, "admin-1", "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("Query() len = %d, want 3", len(subs))
	}
	// most recent first
	wantOrder := []string{latest.ID, middle.ID, oldest.ID}
	for i, want := range wantOrder {
		if subs[i].ID != want {
			t.Errorf("Query() [%d] = %s, want %s", i, subs[i].StudentName, want)
		}
		if subs[i].ReceiptSignedURL == "" {
			t.Errorf("Query() [%d] has no signed receipt URL", i)
		}
	}

	// status filter
	pending, err := env.svc.Query(ctx, cat.ID, "admin-1", "pending")
	if err != nil {
		t.Fatalf("Query(pending) error = %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("Query(pending) len = %d, want 2", len(pending))
	}

	var vErr *core.ValidationError
	if _, err := env.svc.Query(ctx, cat.ID, "admin-1", "lol"); !errors.As(err, &vErr) {
		t.Errorf("Query(lol) error = %v, want ValidationError", err)
	}

	if _, err := env.svc.Query(ctx, cat.ID, "admin-2", ""); err != category.ErrNotOwner {
		t.Errorf("Query() error = %v, want ErrNotOwner", err)
	}
}

func TestService_ExportCSV(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, env.catRepo, "admin-1", "June Fees", true, nil)
	now := time.Now().UTC()
	first := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Alice", "10.00", submission.StatusPending, now.Add(-time.Hour))
	second := testutil.CreateSubmission(t, env.subRepo, cat.ID, "Bob", "20.00", submission.StatusConfirmed, now)

	var buf bytes.Buffer
	if err := env.svc.ExportCSV(ctx, cat.ID, "admin-1", &buf); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("CSV rows = %d, want 3 (header + 2)", len(records))
	}
	wantHeader := []string{
		"ID", "Student Name", "Phone", "Amount Paid", "Status",
		"Submitted At", "Reviewed At", "Reviewed By", "Admin Note", "Receipt Key",
	}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("CSV header[%d] = %s, want %s", i, records[0][i], col)
		}
	}
	// oldest first
	if records[1][0] != first.ID || records[2][0] != second.ID {
		t.Errorf("CSV order = [%s %s], want [%s %s]", records[1][1], records[2][1], first.StudentName, second.StudentName)
	}

	if err := env.svc.ExportCSV(ctx, cat.ID, "admin-2", &buf); err != category.ErrNotOwner {
		t.Errorf("ExportCSV() error = %v, want ErrNotOwner", err)
	}
}
