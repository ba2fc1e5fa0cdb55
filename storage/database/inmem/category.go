package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
)

type categoryRepository struct {
	db   *categoryTable
	subs *submissionTable
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *DB) *categoryRepository {
	return &categoryRepository{db: db.category, subs: db.submission}
}

func (repo *categoryRepository) CreateCategory(_ context.Context, cat category.Category) (category.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if cat.ID == "" {
		cat.ID = uuid.New().String()
	}
	repo.db.table[cat.ID] = &cat
	return cat, nil
}

func (repo *categoryRepository) QueryCategories(_ context.Context, adminID string, ordering ...core.DBOrdering) ([]category.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]category.Category, 0, len(repo.db.table))
	for _, cat := range repo.db.table {
		if cat.AdminID == adminID {
			cats = append(cats, *cat)
		}
	}
	// only created_at ordering is supported, matching the service's use
	if len(ordering) > 0 && ordering[0].Field == "created_at" {
		asc := ordering[0].Ascending
		sort.Slice(cats, func(i, j int) bool {
			if asc {
				return cats[i].CreatedAt.Before(cats[j].CreatedAt)
			}
			return cats[i].CreatedAt.After(cats[j].CreatedAt)
		})
	}
	return cats, nil
}

func (repo *categoryRepository) GetCategory(_ context.Context, filter category.GetFilter) (category.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if cat, ok := repo.db.table[filter.ID]; ok {
			return *cat, nil
		}
		return category.Category{}, category.ErrNotFound
	}
	for _, cat := range repo.db.table {
		if cat.PublicToken == filter.PublicToken {
			return *cat, nil
		}
	}
	return category.Category{}, category.ErrNotFound
}

func (repo *categoryRepository) UpdateCategory(_ context.Context, cat category.Category) (category.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[cat.ID]; !ok {
		return category.Category{}, category.ErrNotFound
	}
	repo.db.table[cat.ID] = &cat
	return cat, nil
}

func (repo *categoryRepository) CountSubmissions(_ context.Context, categoryIDs ...string) (map[string]category.StatusCounts, error) {
	repo.subs.RLock()
	defer repo.subs.RUnlock()

	counts := make(map[string]category.StatusCounts, len(categoryIDs))
	for _, id := range categoryIDs {
		counts[id] = category.StatusCounts{}
	}
	for _, sub := range repo.subs.table {
		c, ok := counts[sub.CategoryID]
		if !ok {
			continue
		}
		switch sub.Status {
		case submission.StatusPending:
			c.Pending++
		case submission.StatusConfirmed:
			c.Confirmed++
		case submission.StatusRejected:
			c.Rejected++
		}
		counts[sub.CategoryID] = c
	}
	return counts, nil
}
