// Package bundle is a file backed authority for book tables of contents.
// It reads collection files of a textbook repository, applies modification
// requests and writes results back, publishing fresh snapshots to listeners.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"poet/config"
	"poet/state"
	"poet/toc"
)

var (
	ErrForeignWorkspace = errors.New("request addressed to another workspace")
	ErrUnknownToken     = errors.New("unknown token")
	ErrBookIndex        = errors.New("book index out of range")
	ErrNotInBook        = errors.New("node is not part of the book")
	ErrWrongKind        = errors.New("node kind does not match request")
	ErrMoveIntoSelf     = errors.New("node cannot be moved inside itself")
)

// Bundle owns canonical state of all books in a workspace. Modifications
// are serialized.
type Bundle struct {
	root string
	uri  string
	cfg  config.WorkspaceConfig
	log  *zap.Logger

	mu    sync.Mutex
	books []*book
	docs  map[string]*document
	ids   *idMap

	lmu       sync.Mutex
	listeners map[int]func(toc.Snapshot)
	nextID    int
}

type Option func(*Bundle)

// WithTokenStore makes document tokens survive program restarts.
func WithTokenStore(store TokenStore) Option {
	return func(b *Bundle) {
		b.ids.store = store
	}
}

// Open loads workspace rooted at root.
func Open(root string, cfg config.WorkspaceConfig, log *zap.Logger, options ...Option) (*Bundle, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve workspace root: %w", err)
	}

	log = log.Named("bundle")
	b := &Bundle{
		root:      abs,
		uri:       state.FileURI(abs),
		cfg:       cfg,
		log:       log,
		docs:      make(map[string]*document),
		ids:       newIDMap(nil, log),
		listeners: make(map[int]func(toc.Snapshot)),
	}
	for _, opt := range options {
		opt(b)
	}

	if err := b.load(); err != nil {
		return nil, fmt.Errorf("unable to load workspace %s: %w", abs, err)
	}
	log.Debug("Workspace loaded", zap.String("root", abs), zap.Int("books", len(b.books)), zap.Int("documents", len(b.docs)))
	return b, nil
}

// Root returns absolute path of the workspace.
func (b *Bundle) Root() string {
	return b.root
}

// URI returns workspace URI requests must be addressed to.
func (b *Bundle) URI() string {
	return b.uri
}

// Snapshot returns current forest with tokens assigned.
func (b *Bundle) Snapshot(ctx context.Context) toc.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(ctx)
}

// Subscribe registers fn to receive snapshot after every applied
// modification.
func (b *Bundle) Subscribe(fn func(toc.Snapshot)) (unsubscribe func()) {
	b.lmu.Lock()
	defer b.lmu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.lmu.Lock()
		defer b.lmu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *Bundle) publish(snap toc.Snapshot) {
	b.lmu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(toc.Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// SendRequest applies modification, persists affected files and publishes
// new snapshot.
func (b *Bundle) SendRequest(ctx context.Context, m toc.Modification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.WorkspaceURI != b.uri {
		return fmt.Errorf("%w: %q", ErrForeignWorkspace, m.WorkspaceURI)
	}
	if m.Event == nil {
		return errors.New("modification carries no event")
	}

	b.mu.Lock()
	err := b.apply(m.Event)
	var snap toc.Snapshot
	if err == nil {
		snap = b.snapshotLocked(ctx)
	}
	b.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%s: %w", m.Event.EventType(), err)
	}
	b.log.Debug("Modification applied", zap.Stringer("event", m.Event.EventType()))
	b.publish(snap)
	return nil
}

func (b *Bundle) snapshotLocked(ctx context.Context) toc.Snapshot {
	referenced := make(map[*document]bool)

	books := make([]*toc.BookToc, 0, len(b.books))
	for _, bk := range b.books {
		books = append(books, &toc.BookToc{
			AbsPath:    bk.absPath,
			UUID:       bk.uuid,
			Title:      bk.title,
			Slug:       bk.slug,
			Language:   bk.language,
			LicenseURL: bk.licenseURL,
			TocTree:    b.convert(ctx, bk.toc, referenced),
		})
	}

	var orphans []*document
	for _, d := range b.docs {
		if !referenced[d] {
			orphans = append(orphans, d)
		}
	}
	if b.cfg.NaturalSortOrphans {
		sort.Slice(orphans, func(i, j int) bool { return natural.Less(orphans[i].id, orphans[j].id) })
	} else {
		sort.Slice(orphans, func(i, j int) bool { return orphans[i].absPath < orphans[j].absPath })
	}

	snap := toc.Snapshot{Books: books, Orphans: make([]toc.Node, 0, len(orphans))}
	for _, d := range orphans {
		snap.Orphans = append(snap.Orphans, b.leaf(ctx, d))
	}
	return snap
}

func (b *Bundle) convert(ctx context.Context, list []*entry, referenced map[*document]bool) []toc.Node {
	nodes := make([]toc.Node, 0, len(list))
	for _, e := range list {
		if e.isLeaf() {
			referenced[e.doc] = true
			nodes = append(nodes, b.leaf(ctx, e.doc))
			continue
		}
		nodes = append(nodes, &toc.Subbook{
			Value:    toc.SubbookValue{Token: b.ids.add(ctx, e, ""), Title: e.title},
			Children: b.convert(ctx, e.children, referenced),
		})
	}
	return nodes
}

func (b *Bundle) leaf(ctx context.Context, d *document) toc.Node {
	value := toc.PageValue{
		Token:   b.ids.add(ctx, d, b.documentKey(d)),
		Title:   d.title,
		FileID:  d.id,
		AbsPath: d.absPath,
	}
	if d.ancillary {
		return &toc.Ancillary{Value: value}
	}
	return &toc.Page{Value: value}
}

// documentKey identifies document between runs by its workspace relative path.
func (b *Bundle) documentKey(d *document) string {
	rel, err := filepath.Rel(b.root, d.absPath)
	if err != nil {
		return ""
	}
	return "doc:" + filepath.ToSlash(rel)
}
