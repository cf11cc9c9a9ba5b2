package synchronizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
)

// fakePlatform serves a fixed definition and descriptors keyed by location.
type fakePlatform struct {
	mu        sync.Mutex
	def       *target.Definition
	defErr    error
	descs     map[string]*target.Descriptor
	descErrs  map[string]error
	listeners []target.ActivationListener
	cancelled int
}

func newFakePlatform(descs ...*target.Descriptor) *fakePlatform {
	p := &fakePlatform{
		def:      &target.Definition{Name: "test"},
		descs:    make(map[string]*target.Descriptor),
		descErrs: make(map[string]error),
	}
	for _, d := range descs {
		p.def.Locations = append(p.def.Locations, d.Location)
		p.descs[d.Location.Name] = d
	}
	return p
}

func (p *fakePlatform) ActiveDefinition(ctx context.Context) (*target.Definition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.def, p.defErr
}

func (p *fakePlatform) Descriptor(ctx context.Context, loc target.Location) (*target.Descriptor, error) {
	if err, ok := p.descErrs[loc.Name]; ok {
		return nil, err
	}
	return p.descs[loc.Name], nil
}

func (p *fakePlatform) Subscribe(l target.ActivationListener) target.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
	idx := len(p.listeners) - 1
	return cancelFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.listeners[idx] = nil
		p.cancelled++
	})
}

func (p *fakePlatform) activate(next *target.Definition) {
	p.mu.Lock()
	prev := p.def
	p.def = next
	listeners := append([]target.ActivationListener(nil), p.listeners...)
	p.mu.Unlock()
	for _, l := range listeners {
		if l != nil {
			l(prev, next)
		}
	}
}

func (p *fakePlatform) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, l := range p.listeners {
		if l != nil {
			n++
		}
	}
	return n
}

type cancelFunc func()

func (f cancelFunc) Cancel() { f() }

// fakeWorkspace records scope entries and imports; units in fail fail.
type fakeWorkspace struct {
	mu       sync.Mutex
	runs     int
	inScope  bool
	runErr   error
	imported []workspace.Unit
	fail     map[workspace.Unit]bool
	panics   map[workspace.Unit]bool
	hold     chan struct{}
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{fail: map[workspace.Unit]bool{}, panics: map[workspace.Unit]bool{}}
}

func (w *fakeWorkspace) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	w.mu.Lock()
	w.runs++
	err := w.runErr
	hold := w.hold
	w.mu.Unlock()
	if err != nil {
		return err
	}
	if hold != nil {
		<-hold
	}

	w.setInScope(true)
	defer w.setInScope(false)
	return fn(ctx)
}

func (w *fakeWorkspace) setInScope(v bool) {
	w.mu.Lock()
	w.inScope = v
	w.mu.Unlock()
}

func (w *fakeWorkspace) Import(ctx context.Context, u workspace.Unit) workspace.ImportResult {
	w.mu.Lock()
	w.imported = append(w.imported, u)
	inScope := w.inScope
	w.mu.Unlock()

	if !inScope {
		return workspace.Failed("", fmt.Errorf("import of %s outside the workspace scope", u))
	}
	if w.panics[u] {
		panic("importer bug")
	}
	if w.fail[u] {
		return workspace.Failed("/ws/"+u.Name, fmt.Errorf("cannot import %s", u.Name))
	}
	return workspace.ImportResult{Status: workspace.StatusImported, Path: "/ws/" + u.Name}
}

func (w *fakeWorkspace) runCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

func (w *fakeWorkspace) scopeActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inScope
}

// recordingNotifier keeps every event; it also records whether the
// workspace scope was still held when the event arrived.
type recordingNotifier struct {
	mu            sync.Mutex
	events        []events.Event
	ws            *fakeWorkspace
	duringApplies int
}

func (n *recordingNotifier) Notify(ctx context.Context, ev events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ws != nil && n.ws.scopeActive() {
		n.duringApplies++
	}
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) all() []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]events.Event(nil), n.events...)
}

func (n *recordingNotifier) byLocation() map[string]workspace.Results {
	out := make(map[string]workspace.Results)
	for _, ev := range n.all() {
		out[ev.Location] = ev.Results
	}
	return out
}

func descriptor(name string, units ...workspace.Unit) *target.Descriptor {
	return &target.Descriptor{
		Location: target.Location{Name: name, Kind: target.KindDirectory},
		Units:    units,
	}
}

func problem(name string, units ...workspace.Unit) *target.Descriptor {
	d := descriptor(name, units...)
	d.UpdateProblem = fmt.Errorf("location %s is out of date", name)
	return d
}

func unit(name string) workspace.Unit {
	return workspace.ProjectUnit(name, "/src/"+name)
}
