package target

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/wsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGitResolver(t *testing.T) (*GitResolver, string) {
	t.Helper()
	cache := t.TempDir()
	r := NewGitResolver(newScanner(), 2, testLogger())
	r.CacheDir = func(location string) string { return filepath.Join(cache, location) }
	return r, cache
}

func TestGitResolverCloneAndFetch(t *testing.T) {
	upstream := t.TempDir()
	repo := testutil.InitGitRepo(t, upstream)
	first := testutil.CreateCommit(t, repo, map[string]string{"svc/api/go.mod": "module api\n"}, "add api")

	r, cache := newTestGitResolver(t)
	loc := Location{Name: "upstream", Kind: KindGit, URL: upstream, Ref: "main"}

	res, err := r.Resolve(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, first.String(), res.Revision)
	require.Equal(t, []string{"api"}, unitNames(res.Units))
	assert.Equal(t, filepath.Join(cache, CheckoutKey(loc), "svc", "api"), res.Units[0].Source)

	second := testutil.CreateCommit(t, repo, map[string]string{"svc/web/package.json": "{}"}, "add web")

	res, err = r.Resolve(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, second.String(), res.Revision)
	assert.Equal(t, []string{"api", "web"}, unitNames(res.Units))
}

func TestGitResolverTagAndSubdir(t *testing.T) {
	upstream := t.TempDir()
	repo := testutil.InitGitRepo(t, upstream)
	tagged := testutil.CreateCommit(t, repo, map[string]string{
		"projects/a/go.mod": "module a\n",
		"other/b/go.mod":    "module b\n",
	}, "v1")
	testutil.CreateTag(t, repo, "v1.0.0")
	testutil.CreateCommit(t, repo, map[string]string{"projects/c/go.mod": "module c\n"}, "after tag")

	r, _ := newTestGitResolver(t)
	res, err := r.Resolve(context.Background(), Location{
		Name:    "tagged",
		Kind:    KindGit,
		URL:     upstream,
		Ref:     "v1.0.0",
		Options: map[string]interface{}{"subdir": "projects"},
	})
	require.NoError(t, err)
	assert.Equal(t, tagged.String(), res.Revision)
	assert.Equal(t, []string{"a"}, unitNames(res.Units))
}

func TestGitResolverDefaultBranch(t *testing.T) {
	upstream := t.TempDir()
	repo := testutil.InitGitRepo(t, upstream)
	head := testutil.CreateCommit(t, repo, map[string]string{"x/go.mod": "module x\n"}, "x")

	r, _ := newTestGitResolver(t)
	res, err := r.Resolve(context.Background(), Location{Name: "default", Kind: KindGit, URL: upstream})
	require.NoError(t, err)
	assert.Equal(t, head.String(), res.Revision)
}

func TestGitResolverUnknownRef(t *testing.T) {
	upstream := t.TempDir()
	testutil.InitGitRepo(t, upstream)

	r, _ := newTestGitResolver(t)
	_, err := r.Resolve(context.Background(), Location{Name: "bad", Kind: KindGit, URL: upstream, Ref: "nope"})
	assert.Error(t, err)
}

func TestGitResolverBadURL(t *testing.T) {
	r, cache := newTestGitResolver(t)
	loc := Location{Name: "gone", Kind: KindGit, URL: filepath.Join(t.TempDir(), "missing")}
	_, err := r.Resolve(context.Background(), loc)
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(cache, CheckoutKey(loc)))
}

func TestGitResolverFollowsURLChange(t *testing.T) {
	first := t.TempDir()
	testutil.CreateCommit(t, testutil.InitGitRepo(t, first), map[string]string{"alpha/go.mod": "module alpha\n"}, "alpha")
	second := t.TempDir()
	testutil.CreateCommit(t, testutil.InitGitRepo(t, second), map[string]string{"beta/go.mod": "module beta\n"}, "beta")

	r, _ := newTestGitResolver(t)
	res, err := r.Resolve(context.Background(), Location{Name: "core", Kind: KindGit, URL: first})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, unitNames(res.Units))

	res, err = r.Resolve(context.Background(), Location{Name: "core", Kind: KindGit, URL: second})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, unitNames(res.Units))
}

func TestGitResolverReclonesForeignCheckout(t *testing.T) {
	first := t.TempDir()
	testutil.CreateCommit(t, testutil.InitGitRepo(t, first), map[string]string{"alpha/go.mod": "module alpha\n"}, "alpha")
	second := t.TempDir()
	testutil.CreateCommit(t, testutil.InitGitRepo(t, second), map[string]string{"beta/go.mod": "module beta\n"}, "beta")

	// Both locations share one directory, so only the origin check tells them apart.
	r, _ := newTestGitResolver(t)
	shared := filepath.Join(t.TempDir(), "shared")
	r.CacheDir = func(string) string { return shared }

	_, err := r.Resolve(context.Background(), Location{Name: "core", Kind: KindGit, URL: first})
	require.NoError(t, err)
	res, err := r.Resolve(context.Background(), Location{Name: "core", Kind: KindGit, URL: second})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, unitNames(res.Units))
}

func TestGitResolverConcurrentResolvesShareCheckout(t *testing.T) {
	upstream := t.TempDir()
	repo := testutil.InitGitRepo(t, upstream)
	head := testutil.CreateCommit(t, repo, map[string]string{"svc/api/go.mod": "module api\n"}, "api")

	r, _ := newTestGitResolver(t)
	loc := Location{Name: "upstream", Kind: KindGit, URL: upstream, Ref: "main"}

	const n = 4
	errs := make(chan error, n)
	revisions := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := r.Resolve(context.Background(), loc)
			if err == nil {
				revisions <- res.Revision
				assert.Equal(t, []string{"api"}, unitNames(res.Units))
			}
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
		assert.Equal(t, head.String(), <-revisions)
	}
}

func TestCheckoutKeyDependsOnURL(t *testing.T) {
	a := CheckoutKey(Location{Name: "core", URL: "https://example.com/a.git"})
	b := CheckoutKey(Location{Name: "core", URL: "https://example.com/b.git"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, CheckoutKey(Location{Name: "core", URL: "https://example.com/a.git"}))
	assert.Regexp(t, `^core-[0-9a-f]{12}$`, a)
}

func TestPoolLockSerialisesDirectory(t *testing.T) {
	pool := NewPool(4)
	var active, peak int32
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			unlock, err := pool.Lock(context.Background(), "/cache/core")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.Equal(t, int32(1), peak)

	unlock, err := pool.Lock(context.Background(), "/cache/core")
	require.NoError(t, err)
	defer unlock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Lock(ctx, "/cache/core")
	assert.ErrorIs(t, err, context.Canceled)

	other, err := pool.Lock(context.Background(), "/cache/other")
	require.NoError(t, err)
	other()
}

func TestPoolLimitsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var active, peak int32
	done := make(chan struct{})

	for i := 0; i < 6; i++ {
		go func() {
			_ = pool.Run(context.Background(), func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, peak, int32(2))
}

func TestPoolNilRunsDirectly(t *testing.T) {
	var p *Pool
	called := false
	require.NoError(t, p.Run(context.Background(), func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestPoolHonoursCancelledContext(t *testing.T) {
	pool := NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Run(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Run(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
