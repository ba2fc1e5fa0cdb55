package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/submission"
)

type submissionRepository struct {
	db *submissionTable
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db.submission}
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	repo.db.table[sub.ID] = &sub
	return sub, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.table[id]; ok {
		return *sub, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.QueryFilter, ordering ...core.DBOrdering) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]submission.Submission, 0, len(repo.db.table))
	for _, sub := range repo.db.table {
		if sub.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		subs = append(subs, *sub)
	}
	// only submitted_at ordering is supported, matching the service's use
	if len(ordering) > 0 && ordering[0].Field == "submitted_at" {
		asc := ordering[0].Ascending
		sort.Slice(subs, func(i, j int) bool {
			if asc {
				return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
			}
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		})
	}
	return subs, nil
}

// ReviewSubmission transitions under the table lock; the status check and the
// write are a single critical section so concurrent reviews cannot both win.
func (repo *submissionRepository) ReviewSubmission(_ context.Context, id, status, note, reviewedBy string, reviewedAt time.Time) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub, ok := repo.db.table[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	if sub.Status != submission.StatusPending {
		return submission.Submission{}, submission.ErrAlreadyReviewed
	}

	updated := *sub
	updated.Status = status
	updated.AdminNote = note
	updated.ReviewedAt = &reviewedAt
	updated.ReviewedBy = reviewedBy
	repo.db.table[id] = &updated
	return updated, nil
}
