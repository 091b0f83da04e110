// Package toc defines the table-of-contents vocabulary shared by the tree
// provider, the event handler and the mutation authority.
package toc

// Type definitions for the book table of contents forest.

// NodeKind is the discriminant of the Node sum type. Values match the wire
// form used by the authority.
type NodeKind string

const (
	KindBook      NodeKind = "BookRootNode.Singleton"
	KindSubbook   NodeKind = "TocNodeKind.Subbook"
	KindPage      NodeKind = "TocNodeKind.Page"
	KindAncillary NodeKind = "TocNodeKind.Ancillary"
	KindOrphans   NodeKind = "OrphanCollection"
)

func (k NodeKind) String() string {
	return string(k)
}

// Token is an opaque identifier of a Subbook, Page or Ancillary within one
// workspace snapshot.
type Token = string

// Node is implemented by *BookToc, *Subbook, *Page, *Ancillary and
// *OrphanCollection only. Identity of a node is pointer identity.
type Node interface {
	Kind() NodeKind
	node()
}

// SubbookValue is the payload of a Subbook.
type SubbookValue struct {
	Token Token  `json:"token"`
	Title string `json:"title"`
}

// PageValue is the payload of a Page or Ancillary. Title is empty while the
// underlying document has not been loaded yet.
type PageValue struct {
	Token   Token  `json:"token"`
	Title   string `json:"title,omitempty"`
	FileID  string `json:"fileId"`
	AbsPath string `json:"absPath"`
}

// Subbook is an inner node grouping pages, ancillaries and other subbooks.
type Subbook struct {
	Value    SubbookValue
	Children []Node
}

// Page is a curricular leaf.
type Page struct {
	Value PageValue
}

// Ancillary is a supplementary (non-curricular) leaf.
type Ancillary struct {
	Value PageValue
}

// BookToc is the root of one collection file.
type BookToc struct {
	AbsPath    string
	UUID       string
	Title      string
	Slug       string
	Language   string
	LicenseURL string
	TocTree    []Node
}

// OrphanCollection groups pages which no book references. It never owns
// children of its own, they are supplied by whoever holds the orphan list.
type OrphanCollection struct {
	Children []Node
}

func (*BookToc) Kind() NodeKind          { return KindBook }
func (*Subbook) Kind() NodeKind          { return KindSubbook }
func (*Page) Kind() NodeKind             { return KindPage }
func (*Ancillary) Kind() NodeKind        { return KindAncillary }
func (*OrphanCollection) Kind() NodeKind { return KindOrphans }

func (*BookToc) node()          {}
func (*Subbook) node()          {}
func (*Page) node()             {}
func (*Ancillary) node()        {}
func (*OrphanCollection) node() {}

// IsClientTocNode reports whether n is a content node (Subbook, Page or
// Ancillary) as opposed to a book root or the orphan sentinel.
func IsClientTocNode(n Node) bool {
	switch v := n.(type) {
	case *Subbook:
		return v != nil
	case *Page:
		return v != nil
	case *Ancillary:
		return v != nil
	}
	return false
}

// IsLeaf reports whether n is a Page or Ancillary.
func IsLeaf(n Node) bool {
	switch v := n.(type) {
	case *Page:
		return v != nil
	case *Ancillary:
		return v != nil
	}
	return false
}

// LeafValue returns payload of a Page or Ancillary.
func LeafValue(n Node) (*PageValue, bool) {
	switch v := n.(type) {
	case *Page:
		if v != nil {
			return &v.Value, true
		}
	case *Ancillary:
		if v != nil {
			return &v.Value, true
		}
	}
	return nil, false
}

// Snapshot is the full forest pushed by the authority after every change.
type Snapshot struct {
	Books   []*BookToc
	Orphans []Node
}

// Walk calls fn for every node reachable from roots in depth-first order,
// passing the direct container (nil for the roots themselves). Walking stops
// at the first error.
func Walk(roots []Node, fn func(n, parent Node) error) error {
	var rec func(nodes []Node, parent Node) error
	rec = func(nodes []Node, parent Node) error {
		for _, n := range nodes {
			if err := fn(n, parent); err != nil {
				return err
			}
			var kids []Node
			switch v := n.(type) {
			case *BookToc:
				kids = v.TocTree
			case *Subbook:
				kids = v.Children
			case *OrphanCollection:
				kids = v.Children
			}
			if err := rec(kids, n); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(roots, nil)
}
