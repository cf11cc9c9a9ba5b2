// Package testutil holds fixtures shared by wsync tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

var testSignature = object.Signature{
	Name:  "Test User",
	Email: "test@example.com",
}

// WriteFiles creates files below dir, making parent directories as needed.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// MakeProjects creates one directory per name under root, each holding a
// go.mod so that it is recognised as a project. It returns root.
func MakeProjects(t *testing.T, root string, names ...string) string {
	t.Helper()

	for _, name := range names {
		WriteFiles(t, root, map[string]string{
			filepath.ToSlash(filepath.Join(name, "go.mod")): "module example.com/" + filepath.Base(name) + "\n",
		})
	}
	return root
}

// InitGitRepo initializes a git repository in dir with an initial commit of
// README.md on branch main.
func InitGitRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()

	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err, "Failed to init git repo")

	CreateCommit(t, repo, map[string]string{"README.md": "# Test Project\n"}, "Initial commit")
	return repo
}

// CreateCommit writes files into the worktree and commits them. It returns
// the new commit hash.
func CreateCommit(t *testing.T, repo *git.Repository, files map[string]string, message string) plumbing.Hash {
	t.Helper()

	wt, err := repo.Worktree()
	require.NoError(t, err)
	WriteFiles(t, wt.Filesystem.Root(), files)

	for name := range files {
		_, err := wt.Add(filepath.ToSlash(name))
		require.NoError(t, err, "Failed to git add %s", name)
	}

	sig := testSignature
	sig.When = time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{Author: &sig, Committer: &sig})
	require.NoError(t, err, "Failed to git commit")
	return hash
}

// CreateTag creates a lightweight tag at the current HEAD.
func CreateTag(t *testing.T, repo *git.Repository, name string) {
	t.Helper()

	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag(name, head.Hash(), nil)
	require.NoError(t, err, "Failed to create tag %s", name)
}

// CreateBranch creates a branch at the current HEAD without checking it out.
func CreateBranch(t *testing.T, repo *git.Repository, name string) {
	t.Helper()

	head, err := repo.Head()
	require.NoError(t, err)
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	require.NoError(t, repo.Storer.SetReference(ref), "Failed to create branch %s", name)
}

// SetHome points WSYNC_HOME at a fresh temporary directory so that state,
// cache and config lookups stay inside the test.
func SetHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("WSYNC_HOME", home)
	return home
}
