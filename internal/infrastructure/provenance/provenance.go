// Package provenance records which revision of a dataset a run evaluated.
package provenance

import (
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Revision identifies the dataset checkout. The zero value means the dataset
// is not under version control.
type Revision struct {
	Commit string
	Branch string
}

// String returns the short form recorded with a run.
func (r Revision) String() string {
	if r.Commit == "" {
		return ""
	}
	short := r.Commit
	if len(short) > 12 {
		short = short[:12]
	}
	if r.Branch == "" {
		return short
	}
	return r.Branch + "@" + short
}

// Lookup returns the HEAD revision of the repository containing path. A
// path outside any repository, or a repository without commits, yields the
// zero Revision.
func Lookup(path string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("open dataset repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("resolve dataset head: %w", err)
	}

	rev := Revision{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}
	return rev, nil
}
