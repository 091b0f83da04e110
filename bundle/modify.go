package bundle

import (
	"fmt"
	"slices"

	"github.com/gosimple/slug"
	"go.uber.org/multierr"

	"poet/toc"
)

// apply changes canonical state according to event. Every lookup is done
// before anything is changed, so rejected requests leave state intact.
func (b *Bundle) apply(ev toc.Event) error {
	switch ev := ev.(type) {
	case toc.MoveEvent:
		return b.move(ev)
	case toc.RemoveEvent:
		return b.remove(ev)
	case toc.PageRenameEvent:
		return b.renameDocument(ev.NodeToken, ev.BookIndex, ev.NewTitle, false)
	case toc.AncillaryRenameEvent:
		return b.renameDocument(ev.NodeToken, ev.BookIndex, ev.NewTitle, true)
	case toc.SubbookRenameEvent:
		return b.renameSubbook(ev)
	case toc.CreateSubbookEvent:
		name := ev.Slug
		if len(name) == 0 {
			name = slug.Make(ev.Title)
		}
		return b.insertNew(ev.BookIndex, ev.ParentNodeToken, func() (*entry, error) {
			return &entry{title: ev.Title, slug: name}, nil
		})
	case toc.CreatePageEvent:
		return b.insertNew(ev.BookIndex, ev.ParentNodeToken, func() (*entry, error) {
			d, err := b.createDocument(ev.Title, false)
			return &entry{doc: d}, err
		})
	case toc.CreateAncillaryEvent:
		return b.insertNew(ev.BookIndex, ev.ParentNodeToken, func() (*entry, error) {
			d, err := b.createDocument(ev.Title, true)
			return &entry{doc: d}, err
		})
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

func (b *Bundle) book(index int) (*book, error) {
	if index < 0 || index >= len(b.books) {
		return nil, fmt.Errorf("%w: %d", ErrBookIndex, index)
	}
	return b.books[index], nil
}

// locate finds entry for token inside the book. Documents not placed in the
// book yield a new detached leaf, so orphans could be moved in.
func (b *Bundle) locate(bk *book, token toc.Token) (node *entry, list *[]*entry, pos int, err error) {
	v, ok := b.ids.lookup(token)
	if !ok {
		return nil, nil, -1, fmt.Errorf("%w: %q", ErrUnknownToken, token)
	}
	switch v := v.(type) {
	case *document:
		if list, pos = find(&bk.toc, refersTo(v)); list != nil {
			return (*list)[pos], list, pos, nil
		}
		return &entry{doc: v}, nil, -1, nil
	case *entry:
		if list, pos = find(&bk.toc, same(v)); list == nil {
			return nil, nil, -1, fmt.Errorf("%w: %q", ErrNotInBook, token)
		}
		return v, list, pos, nil
	}
	return nil, nil, -1, fmt.Errorf("%w: %q", ErrUnknownToken, token)
}

// children returns list new nodes go to: top level for empty token,
// otherwise children of the subbook.
func (b *Bundle) children(bk *book, parentToken toc.Token) (*entry, *[]*entry, error) {
	if len(parentToken) == 0 {
		return nil, &bk.toc, nil
	}
	parent, list, _, err := b.locate(bk, parentToken)
	if err != nil {
		return nil, nil, err
	}
	if parent.isLeaf() {
		return nil, nil, fmt.Errorf("%w: parent %q is not a subbook", ErrWrongKind, parentToken)
	}
	if list == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrNotInBook, parentToken)
	}
	return parent, &parent.children, nil
}

// origin finds where node for token is placed now. Target book is searched
// first, then the rest, so a node dragged between books is detached from
// its source. Documents placed nowhere yield a new detached leaf.
func (b *Bundle) origin(target *book, token toc.Token) (node *entry, src *book, list *[]*entry, pos int, err error) {
	v, ok := b.ids.lookup(token)
	if !ok {
		return nil, nil, nil, -1, fmt.Errorf("%w: %q", ErrUnknownToken, token)
	}
	var match func(*entry) bool
	switch v := v.(type) {
	case *document:
		match = refersTo(v)
	case *entry:
		match = same(v)
	default:
		return nil, nil, nil, -1, fmt.Errorf("%w: %q", ErrUnknownToken, token)
	}
	for _, bk := range append([]*book{target}, b.books...) {
		if list, pos = find(&bk.toc, match); list != nil {
			return (*list)[pos], bk, list, pos, nil
		}
	}
	if d, ok := v.(*document); ok {
		return &entry{doc: d}, nil, nil, -1, nil
	}
	return nil, nil, nil, -1, fmt.Errorf("%w: %q", ErrNotInBook, token)
}

func (b *Bundle) move(ev toc.MoveEvent) error {
	bk, err := b.book(ev.BookIndex)
	if err != nil {
		return err
	}
	node, src, from, pos, err := b.origin(bk, ev.NodeToken)
	if err != nil {
		return err
	}
	parent, to, err := b.children(bk, ev.NewParentToken)
	if err != nil {
		return err
	}
	if parent != nil && (parent == node || contains(node, parent)) {
		return ErrMoveIntoSelf
	}

	if from != nil {
		*from = slices.Delete(*from, pos, pos+1)
	}
	index := min(max(ev.NewChildIndex, 0), len(*to))
	*to = slices.Insert(*to, index, node)

	err = b.writeCollection(bk)
	if src != nil && src != bk {
		err = multierr.Append(err, b.writeCollection(src))
	}
	return err
}

func (b *Bundle) remove(ev toc.RemoveEvent) error {
	bk, err := b.book(ev.BookIndex)
	if err != nil {
		return err
	}
	_, list, pos, err := b.locate(bk, ev.NodeToken)
	if err != nil {
		return err
	}
	if list == nil {
		return fmt.Errorf("%w: %q", ErrNotInBook, ev.NodeToken)
	}
	// documents of removed subtree become orphans
	*list = slices.Delete(*list, pos, pos+1)
	return b.writeCollection(bk)
}

func (b *Bundle) renameDocument(token toc.Token, bookIndex int, title string, ancillary bool) error {
	if _, err := b.book(bookIndex); err != nil {
		return err
	}
	v, ok := b.ids.lookup(token)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownToken, token)
	}
	d, ok := v.(*document)
	if !ok || d.ancillary != ancillary {
		return fmt.Errorf("%w: %q", ErrWrongKind, token)
	}
	if err := writeTitle(d, title); err != nil {
		return err
	}
	d.title = title
	return nil
}

func (b *Bundle) renameSubbook(ev toc.SubbookRenameEvent) error {
	bk, err := b.book(ev.BookIndex)
	if err != nil {
		return err
	}
	node, list, _, err := b.locate(bk, ev.NodeToken)
	if err != nil {
		return err
	}
	if node.isLeaf() || list == nil {
		return fmt.Errorf("%w: %q", ErrWrongKind, ev.NodeToken)
	}
	node.title = ev.NewTitle
	return b.writeCollection(bk)
}

// insertNew appends entry produced by create to the parent. Files are
// created only after target is known to exist.
func (b *Bundle) insertNew(bookIndex int, parentToken toc.Token, create func() (*entry, error)) error {
	bk, err := b.book(bookIndex)
	if err != nil {
		return err
	}
	_, to, err := b.children(bk, parentToken)
	if err != nil {
		return err
	}
	e, err := create()
	if err != nil {
		return err
	}
	*to = append(*to, e)
	return b.writeCollection(bk)
}
