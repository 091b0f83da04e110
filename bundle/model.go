package bundle

import (
	"github.com/beevik/etree"
)

const (
	nsCollection = "http://cnx.rice.edu/collxml"
	nsMetadata   = "http://cnx.rice.edu/mdml"
	nsCnxml      = "http://cnx.rice.edu/cnxml"

	// UntitledFile is shown for documents which have no title element.
	UntitledFile = "UntitledFile"
	// documents are kept in <dir>/<id>/indexFile
	indexFile = "index.cnxml"
)

// document is a page or an ancillary file on disk. Documents are shared by
// all books referencing them.
type document struct {
	id        string
	absPath   string
	ancillary bool
	title     string
}

// entry is a node of the book table of contents: either a leaf pointing to
// a document or a subbook with children.
type entry struct {
	doc      *document
	title    string
	slug     string
	children []*entry
}

func (e *entry) isLeaf() bool {
	return e.doc != nil
}

type book struct {
	absPath    string
	uuid       string
	title      string
	slug       string
	language   string
	licenseURL string
	toc        []*entry

	// parsed collection, metadata and unknown elements survive rewrites
	xml *etree.Document
}

// find returns the list holding entry accepted by match and its position
// there, or nil when nothing matches.
func find(list *[]*entry, match func(*entry) bool) (*[]*entry, int) {
	for i, e := range *list {
		if match(e) {
			return list, i
		}
		if !e.isLeaf() {
			if l, j := find(&e.children, match); l != nil {
				return l, j
			}
		}
	}
	return nil, -1
}

func same(target *entry) func(*entry) bool {
	return func(e *entry) bool { return e == target }
}

func refersTo(doc *document) func(*entry) bool {
	return func(e *entry) bool { return e.doc == doc }
}

// contains reports whether target is somewhere below e.
func contains(e, target *entry) bool {
	l, _ := find(&e.children, same(target))
	return l != nil
}
