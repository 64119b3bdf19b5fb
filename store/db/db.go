// Package db selects the storage driver for a profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/hyeonwoo/calmate/internal/profile"
	"github.com/hyeonwoo/calmate/store"
	"github.com/hyeonwoo/calmate/store/db/sqlite"
)

// NewDriver creates the db driver for the profile. SQLite is the only
// supported backend; the token table is tiny and write traffic is one
// row per authentication.
func NewDriver(profile *profile.Profile) (store.Driver, error) {
	driver, err := sqlite.NewDB(profile)
	if err != nil {
		return nil, errors.Wrap(err, "create db driver")
	}
	return driver, nil
}
