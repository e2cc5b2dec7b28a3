package stamp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sig = &object.Signature{Name: "Board Bringup", Email: "bringup@example.com", When: time.Unix(1700000000, 0)}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)

	hash, err := wt.Commit("update "+name, &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	return hash
}

func TestResolve_NotARepository(t *testing.T) {
	assert.Equal(t, "notgit", Resolve(t.TempDir(), "notgit", nil))
}

func TestResolve_EmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	assert.Equal(t, "notgit", Resolve(dir, "notgit", nil), "no HEAD yet")
}

func TestDescribe_Untagged(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFile(t, repo, dir, "main.rs", "fn main() {}")

	s, err := Describe(dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String()[:7], s)
}

func TestDescribe_Tags(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFile(t, repo, dir, "main.rs", "fn main() {}")
	_, err = repo.CreateTag("release-1.4", first, &git.CreateTagOptions{Tagger: sig, Message: "release 1.4"})
	require.NoError(t, err)

	s, err := Describe(dir)
	require.NoError(t, err)
	assert.Equal(t, "release-1.4", s)

	commitFile(t, repo, dir, "main.rs", "fn main() { loop {} }")
	third := commitFile(t, repo, dir, "layout.ld", "INCLUDE ../kernel_layout.ld")

	// Lightweight tags are not considered
	_, err = repo.CreateTag("wip", third, nil)
	require.NoError(t, err)

	// Subdirectories resolve to the enclosing repository
	sub := filepath.Join(dir, "boards", "imix")
	require.NoError(t, os.MkdirAll(sub, 0755))

	s, err = Describe(sub)
	require.NoError(t, err)
	assert.Equal(t, "release-1.4-2-g"+third.String()[:7], s)
}

func TestDescribe_MergedBranchCounts(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commitWithParents := func(name string, parents ...plumbing.Hash) plumbing.Hash {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
		_, err := wt.Add(name)
		require.NoError(t, err)
		hash, err := wt.Commit("add "+name, &git.CommitOptions{Author: sig, Parents: parents})
		require.NoError(t, err)
		return hash
	}

	root := commitFile(t, repo, dir, "main.rs", "fn main() {}")
	release := commitFile(t, repo, dir, "layout.ld", "INCLUDE ../kernel_layout.ld")
	_, err = repo.CreateTag("release-2.0", release, &git.CreateTagOptions{Tagger: sig, Message: "release 2.0"})
	require.NoError(t, err)

	// A board branch forked before the tag is merged after it
	board := commitWithParents("uart.rs", root)
	merge := commitWithParents("chip.rs", release, board)

	s, err := Describe(dir)
	require.NoError(t, err)
	assert.Equal(t, "release-2.0-2-g"+merge.String()[:7], s, "merge and side commit are both past the tag")
}
