package target

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/workspace"
)

// Resolution is what a resolver found for a location.
type Resolution struct {
	Units    []workspace.Unit
	Revision string
}

// Resolver turns a location into the units it requests.
type Resolver interface {
	Resolve(ctx context.Context, loc Location) (*Resolution, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, loc Location) (*Resolution, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, loc Location) (*Resolution, error) {
	return f(ctx, loc)
}

// DirectoryResolver scans a local directory for projects.
type DirectoryResolver struct {
	Scanner *Scanner
}

// Resolve scans loc.Path.
func (r *DirectoryResolver) Resolve(ctx context.Context, loc Location) (*Resolution, error) {
	var opts ScanOptions
	if err := loc.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	units, err := r.Scanner.Scan(ctx, loc.Path, loc, opts)
	if err != nil {
		return nil, err
	}
	return &Resolution{Units: units}, nil
}

const maxResourceSize = 10 << 20

// ResourcesResolver turns resource specs into resource units, fetching
// content from files or URLs where the spec names one.
type ResourcesResolver struct {
	Client *http.Client
}

// Resolve builds one resource unit per spec.
func (r *ResourcesResolver) Resolve(ctx context.Context, loc Location) (*Resolution, error) {
	units := make([]workspace.Unit, 0, len(loc.Resources))
	for _, spec := range loc.Resources {
		content := spec.Content
		if content == "" && spec.From != "" {
			data, err := r.fetch(ctx, spec.From)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeResourceUnavailable,
					fmt.Sprintf("resource '%s' is unavailable", spec.Target)).WithDetail("from", spec.From)
			}
			content = string(data)
		}
		unit := workspace.ResourceUnit(spec.Target, content, spec.Encoding, spec.Force)
		unit.Source = spec.From
		if err := unit.Validate(); err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return &Resolution{Units: units}, nil
}

func (r *ResourcesResolver) fetch(ctx context.Context, from string) ([]byte, error) {
	if !isURL(from) {
		return os.ReadFile(strings.TrimPrefix(from, "file://"))
	}

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, from, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", from, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxResourceSize {
		return nil, fmt.Errorf("GET %s: content exceeds %d bytes", from, maxResourceSize)
	}
	return data, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
