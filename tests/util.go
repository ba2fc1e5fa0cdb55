package testutil

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
	"github.com/trezcool/malipo/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCategory(
	t *testing.T,
	repo category.Repository,
	adminID, title string,
	isActive bool,
	expiresAt *time.Time,
	createdAt ...time.Time,
) category.Category {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	token, err := category.GenerateToken()
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	cat := category.Category{
		AdminID:     adminID,
		Title:       title,
		PublicToken: token,
		IsActive:    isActive,
		ExpiresAt:   expiresAt,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	cat, err = repo.CreateCategory(context.Background(), cat)
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	return cat
}

func CreateSubmission(
	t *testing.T,
	repo submission.Repository,
	categoryID, studentName, amount, status string,
	submittedAt ...time.Time,
) submission.Submission {
	tstamp := time.Now().UTC()
	if len(submittedAt) > 0 {
		tstamp = submittedAt[0].UTC()
	}
	sub := submission.Submission{
		CategoryID:   categoryID,
		StudentName:  studentName,
		StudentPhone: "+243810000000",
		AmountPaid:   decimal.RequireFromString(amount),
		ReceiptKey:   "receipts/" + categoryID + "/test/receipt.pdf",
		Status:       status,
		SubmittedAt:  tstamp,
	}
	sub, err := repo.CreateSubmission(context.Background(), sub)
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

// Logger is a core.Logger that writes to the standard logger; it never
// reports anywhere.
type Logger struct {
	std *log.Logger
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{std: log.New(os.Stdout, "TEST : ", log.LstdFlags)}
}

func (l Logger) Enable(bool) {}

func (l Logger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v", arg)
	}
}

func (l Logger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}
