package user

import (
	"errors"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/malipo/core"
)

// password policy
var (
	pwdMaxSim = 0.7

	errPasswordSimilar = errors.New("password is too similar to name or email")
)

// checkPasswordSimilarity rejects passwords that closely resemble the user's
// name or email.
func checkPasswordSimilarity(pwd, name, email string) error {
	lpwd := strings.ToLower(pwd)
	getRatio := func(attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
	}
	if getRatio(name) >= pwdMaxSim || getRatio(email) >= pwdMaxSim {
		return core.NewValidationError(
			errPasswordSimilar,
			core.FieldError{Field: "password", Error: errPasswordSimilar.Error()},
		)
	}
	return nil
}
