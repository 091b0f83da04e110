// Package tocs keeps the current table-of-contents forest and turns editing
// gestures against it into modification requests.
package tocs

import (
	"sync"

	"poet/toc"
)

// Provider is the single source of truth for the current forest and how it
// is organized for display. It is safe for concurrent use.
type Provider struct {
	mu         sync.RWMutex
	books      []*toc.BookToc
	orphans    []toc.Node
	parents    map[toc.Node]toc.Node
	filterMode bool
	sentinel   *toc.OrphanCollection

	subMu  sync.Mutex
	nextID int
	subs   map[int]func()
}

// NewProvider returns provider with empty forest.
func NewProvider() *Provider {
	return &Provider{
		parents:  make(map[toc.Node]toc.Node),
		sentinel: &toc.OrphanCollection{},
		subs:     make(map[int]func()),
	}
}

// OnDidChangeTreeData registers fn to be called after every Update and
// ToggleFilterMode. Returned function removes the subscription.
func (p *Provider) OnDidChangeTreeData(fn func()) (unsubscribe func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		delete(p.subs, id)
	}
}

func (p *Provider) fire() {
	p.subMu.Lock()
	fns := make([]func(), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Update replaces the whole forest and rebuilds parent index. Nodes returned
// by earlier calls are no longer part of the tree after this.
func (p *Provider) Update(books []*toc.BookToc, orphans []toc.Node) {
	p.mu.Lock()
	p.books = books
	p.orphans = orphans
	p.sentinel = &toc.OrphanCollection{Children: orphans}
	clear(p.parents)
	for _, b := range books {
		p.addParents(b)
	}
	p.mu.Unlock()

	p.fire()
}

// Apply is Update for a snapshot pushed by the authority.
func (p *Provider) Apply(s toc.Snapshot) {
	p.Update(s.Books, s.Orphans)
}

func (p *Provider) addParents(n toc.Node) {
	for _, k := range children(n) {
		p.parents[k] = n
		p.addParents(k)
	}
}

// Books returns current book roots.
func (p *Provider) Books() []*toc.BookToc {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.books
}

// Orphans returns sentinel node grouping current orphans. It is replaced on
// every Update.
func (p *Provider) Orphans() *toc.OrphanCollection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sentinel
}

// GetChildren returns book roots followed by orphans for nil node, otherwise
// direct children of the node. Leaves have no children.
func (p *Provider) GetChildren(n toc.Node) []toc.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if n == nil {
		out := make([]toc.Node, 0, len(p.books)+len(p.orphans))
		for _, b := range p.books {
			out = append(out, b)
		}
		return append(out, p.orphans...)
	}
	if _, ok := n.(*toc.OrphanCollection); ok {
		return p.orphans
	}
	return children(n)
}

func children(n toc.Node) []toc.Node {
	switch v := n.(type) {
	case *toc.BookToc:
		if v != nil {
			return v.TocTree
		}
	case *toc.Subbook:
		if v != nil {
			return v.Children
		}
	}
	return []toc.Node{}
}

// GetParent returns direct container of the node, nil for book roots and
// orphans.
func (p *Provider) GetParent(n toc.Node) toc.Node {
	if n == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.parents[n]
}

// GetParentBook walks parents until a book root is reached. Returns nil for
// orphans and for book roots themselves.
func (p *Provider) GetParentBook(n toc.Node) *toc.BookToc {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// NOTE: forest is acyclic by contract, there is no cycle guard here
	for cur := p.parents[n]; cur != nil; cur = p.parents[cur] {
		if b, ok := cur.(*toc.BookToc); ok {
			return b
		}
	}
	return nil
}

// GetBookIndex returns position of the book with the same AbsPath in the
// current forest.
func (p *Provider) GetBookIndex(book *toc.BookToc) (int, bool) {
	if book == nil {
		return -1, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	for i, b := range p.books {
		if b.AbsPath == book.AbsPath {
			return i, true
		}
	}
	return -1, false
}

// GetParentBookIndex is GetBookIndex of GetParentBook.
func (p *Provider) GetParentBookIndex(n toc.Node) (int, bool) {
	book := p.GetParentBook(n)
	if book == nil {
		return -1, false
	}
	return p.GetBookIndex(book)
}

// ToggleFilterMode flips display mode. Underlying data is not touched.
func (p *Provider) ToggleFilterMode() {
	p.mu.Lock()
	p.filterMode = !p.filterMode
	p.mu.Unlock()

	p.fire()
}

// FilterMode reports current display mode.
func (p *Provider) FilterMode() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filterMode
}
