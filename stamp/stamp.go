// Package stamp derives the kernel version stamp from source control.
//
// The stamp reads like `git describe --always`: the nearest annotated tag,
// suffixed with the distance and abbreviated commit when HEAD is past it, or
// the abbreviated commit alone when no tag is reachable.
package stamp

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"

	"github.com/teranos/flashbuild/errors"
	"github.com/teranos/flashbuild/logger"
)

// abbrev matches git's default abbreviated hash length
const abbrev = 7

// Describe returns the describe string for the repository containing dir
func Describe(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", errors.Wrapf(err, "failed to open repository at %s", dir)
	}

	head, err := repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve HEAD")
	}

	tags, err := annotatedTags(repo)
	if err != nil {
		return "", err
	}

	short := head.Hash().String()[:abbrev]
	if len(tags) == 0 {
		return short, nil
	}

	commits, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderBSF})
	if err != nil {
		return "", errors.Wrap(err, "failed to walk history")
	}
	defer commits.Close()

	// The first tagged commit in breadth-first order is the nearest tag
	var tagged plumbing.Hash
	tag := ""
	err = commits.ForEach(func(c *object.Commit) error {
		if name, ok := tags[c.Hash]; ok {
			tag, tagged = name, c.Hash
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to walk history")
	}
	if tag == "" {
		return short, nil
	}

	depth, err := distance(repo, head.Hash(), tagged)
	if err != nil {
		return "", err
	}
	if depth == 0 {
		return tag, nil
	}
	return fmt.Sprintf("%s-%d-g%s", tag, depth, short), nil
}

// distance counts the commits reachable from head that are not reachable
// from base. Merged side branches count, as they do for git describe.
func distance(repo *git.Repository, head, base plumbing.Hash) (int, error) {
	baseCommit, err := repo.CommitObject(base)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read commit %s", base)
	}
	headCommit, err := repo.CommitObject(head)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read commit %s", head)
	}

	inBase := make(map[plumbing.Hash]bool)
	err = object.NewCommitPreorderIter(baseCommit, nil, nil).ForEach(func(c *object.Commit) error {
		inBase[c.Hash] = true
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to walk tagged history")
	}

	n := 0
	err = object.NewCommitPreorderIter(headCommit, inBase, nil).ForEach(func(*object.Commit) error {
		n++
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to walk history")
	}
	return n, nil
}

// annotatedTags maps tagged commits to tag names.
// Lightweight tags are ignored, as git describe does by default.
func annotatedTags(repo *git.Repository) (map[plumbing.Hash]string, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tags")
	}
	defer refs.Close()

	tags := make(map[plumbing.Hash]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		tag, err := repo.TagObject(ref.Hash())
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if tag.TargetType != plumbing.CommitObject {
			return nil
		}
		// Several tags on one commit: keep the lexically greatest for stable output
		if existing, ok := tags[tag.Target]; !ok || tag.Name > existing {
			tags[tag.Target] = tag.Name
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read tags")
	}
	return tags, nil
}

// Resolve returns the stamp for dir, or fallback when dir is not inside a
// usable repository
func Resolve(dir, fallback string, log *zap.SugaredLogger) string {
	s, err := Describe(dir)
	if err != nil || s == "" {
		if log != nil {
			log.Debugw("No version stamp from source control", logger.FieldPath, dir, logger.FieldError, err)
		}
		return fallback
	}
	return s
}
