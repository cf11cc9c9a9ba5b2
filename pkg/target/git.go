package target

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/grovetools/wsync/pkg/paths"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Pool bounds git work across locations and gives each checkout directory
// one owner at a time. A nil Pool imposes no limits.
type Pool struct {
	sem *semaphore.Weighted

	mu   sync.Mutex
	dirs map[string]chan struct{}
}

// NewPool creates a Pool running at most limit git operations at once.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), dirs: make(map[string]chan struct{})}
}

// Run runs fn in one of the pool's slots.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Lock claims dir until the returned func is called. It does not take a
// slot, so a holder may scan its checkout without blocking other clones.
func (p *Pool) Lock(ctx context.Context, dir string) (func(), error) {
	if p == nil {
		return func() {}, nil
	}
	p.mu.Lock()
	if p.dirs == nil {
		p.dirs = make(map[string]chan struct{})
	}
	owner, ok := p.dirs[dir]
	if !ok {
		owner = make(chan struct{}, 1)
		p.dirs[dir] = owner
	}
	p.mu.Unlock()

	select {
	case owner <- struct{}{}:
		return func() { <-owner }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GitResolver checks out a git location into the cache and scans it.
type GitResolver struct {
	Scanner *Scanner
	Pool    *Pool
	// CacheDir maps a checkout key, see CheckoutKey, to its directory.
	CacheDir func(key string) string
	logger   *logrus.Entry
}

// NewGitResolver creates a git resolver checking out under the XDG cache.
func NewGitResolver(scanner *Scanner, concurrency int, logger *logrus.Entry) *GitResolver {
	return &GitResolver{
		Scanner:  scanner,
		Pool:     NewPool(concurrency),
		CacheDir: paths.LocationCacheDir,
		logger:   logger,
	}
}

// CheckoutKey names the cache entry of a git location. It changes with the
// URL so a renamed remote never reuses another repository's checkout.
func CheckoutKey(loc Location) string {
	sum := sha256.Sum256([]byte(loc.URL))
	return loc.Name + "-" + hex.EncodeToString(sum[:6])
}

// Resolve clones or fetches loc.URL, checks out loc.Ref and scans the tree.
// The checkout stays locked until the scan is done.
func (r *GitResolver) Resolve(ctx context.Context, loc Location) (*Resolution, error) {
	var opts ScanOptions
	if err := loc.DecodeOptions(&opts); err != nil {
		return nil, err
	}

	dir := r.CacheDir(CheckoutKey(loc))
	unlock, err := r.Pool.Lock(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var revision string
	err = r.Pool.Run(ctx, func() error {
		var err error
		revision, err = r.checkout(ctx, loc, opts, dir)
		return err
	})
	if err != nil {
		return nil, err
	}

	scanRoot := dir
	if opts.Subdir != "" {
		scanRoot = filepath.Join(dir, filepath.Clean(opts.Subdir))
	}
	units, err := r.Scanner.Scan(ctx, scanRoot, loc, opts)
	if err != nil {
		return nil, err
	}
	return &Resolution{Units: units, Revision: revision}, nil
}

func (r *GitResolver) checkout(ctx context.Context, loc Location, opts ScanOptions, dir string) (string, error) {
	auth := authFor(opts)
	log := r.logger.WithFields(logrus.Fields{"location": loc.Name, "url": loc.URL, "ref": loc.Ref})

	repo, err := git.PlainOpen(dir)
	if err == nil && !hasOrigin(repo, loc.URL) {
		log.Info("Checkout tracks another remote, cloning again")
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("failed to remove stale checkout %s: %w", dir, err)
		}
		err = git.ErrRepositoryNotExists
	}
	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		log.Info("Cloning location")
		repo, err = r.clone(ctx, loc, auth, dir)
		if err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("failed to clone %s: %w", loc.URL, err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to open checkout %s: %w", dir, err)
	default:
		log.Debug("Fetching location")
		err = repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: git.DefaultRemoteName,
			Depth:      loc.Depth,
			Tags:       git.AllTags,
			Force:      true,
			Auth:       auth,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("failed to fetch %s: %w", loc.URL, err)
		}
	}

	hash, err := resolveRef(repo, loc.Ref)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return "", fmt.Errorf("failed to check out %s: %w", hash, err)
	}
	return hash.String(), nil
}

// clone tries ref as a branch, then as a tag, then falls back to a full clone
// so that commit hashes resolve.
func (r *GitResolver) clone(ctx context.Context, loc Location, auth transport.AuthMethod, dir string) (*git.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, err
	}

	var refs []plumbing.ReferenceName
	if loc.Ref != "" {
		refs = append(refs, plumbing.NewBranchReferenceName(loc.Ref), plumbing.NewTagReferenceName(loc.Ref))
	}
	for _, ref := range refs {
		repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           loc.URL,
			ReferenceName: ref,
			SingleBranch:  loc.Depth > 0,
			Depth:         loc.Depth,
			Auth:          auth,
			Tags:          git.AllTags,
		})
		if err == nil {
			return repo, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		_ = os.RemoveAll(dir)
	}

	depth := loc.Depth
	if loc.Ref != "" {
		depth = 0
	}
	return git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   loc.URL,
		Depth: depth,
		Auth:  auth,
		Tags:  git.AllTags,
	})
}

func hasOrigin(repo *git.Repository, url string) bool {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return false
	}
	urls := remote.Config().URLs
	return len(urls) > 0 && urls[0] == url
}

// resolveRef finds the commit for ref, preferring the remote branch so that
// fetched commits are picked up. An empty ref follows the cloned branch.
func resolveRef(repo *git.Repository, ref string) (*plumbing.Hash, error) {
	if ref == "" {
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to read HEAD: %w", err)
		}
		if !head.Name().IsBranch() {
			h := head.Hash()
			return &h, nil
		}
		ref = head.Name().Short()
	}

	candidates := []string{
		plumbing.NewRemoteReferenceName(git.DefaultRemoteName, ref).String(),
		plumbing.NewTagReferenceName(ref).String(),
		ref,
	}
	for _, rev := range candidates {
		if h, err := repo.ResolveRevision(plumbing.Revision(rev)); err == nil {
			return h, nil
		}
	}
	return nil, fmt.Errorf("ref '%s' not found", ref)
}

func authFor(opts ScanOptions) transport.AuthMethod {
	if opts.TokenEnv == "" {
		return nil
	}
	token := os.Getenv(opts.TokenEnv)
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}
}
