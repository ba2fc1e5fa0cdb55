package inmemdb

import (
	"sync"

	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
	"github.com/trezcool/malipo/core/user"
)

type (
	DB struct {
		user       *userTable
		category   *categoryTable
		submission *submissionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	categoryTable struct {
		sync.RWMutex
		table map[string]*category.Category
	}

	submissionTable struct {
		sync.RWMutex
		table map[string]*submission.Submission
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		category:   &categoryTable{table: make(map[string]*category.Category)},
		submission: &submissionTable{table: make(map[string]*submission.Submission)},
	}
	return db, nil
}
