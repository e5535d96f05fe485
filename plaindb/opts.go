package plaindb

import (
	"github.com/johnstarich/banklink/vcs"
)

// DBOpt configures the DB built by Open
type DBOpt interface {
	do(*database) error
}

type dbOpt func(*database) error

func (opt dbOpt) do(db *database) error {
	return opt(db)
}

// VersionControl commits every bucket write to a git repository in the DB's directory.
// If setRepo is non-nil, it receives the opened repository.
func VersionControl(setRepo *vcs.Repository) DBOpt {
	return dbOpt(func(db *database) error {
		repo, err := vcs.Open(db.path)
		if err != nil {
			return err
		}
		db.repo = repo
		if setRepo != nil {
			*setRepo = repo
		}
		return nil
	})
}
