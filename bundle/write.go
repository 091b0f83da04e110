package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// writeCollection replaces content of the collection file with current toc.
// Metadata and any other elements are kept as they were read.
func (b *Bundle) writeCollection(bk *book) error {
	root := bk.xml.Root()
	ensureNamespace(root, "col", nsCollection)
	ensureNamespace(root, "md", nsMetadata)

	fresh := etree.NewElement("col:content")
	if old := root.SelectElement("content"); old != nil {
		idx := old.Index()
		root.RemoveChildAt(idx)
		root.InsertChildAt(idx, fresh)
	} else {
		root.AddChild(fresh)
	}
	for _, e := range bk.toc {
		buildEntry(fresh, e)
	}

	bk.xml.Indent(b.cfg.Indent)
	if err := bk.xml.WriteToFile(bk.absPath); err != nil {
		return fmt.Errorf("unable to write collection %s: %w", bk.absPath, err)
	}
	return nil
}

func buildEntry(parent *etree.Element, e *entry) {
	if e.isLeaf() {
		tag := "col:module"
		if e.doc.ancillary {
			tag = "col:ancillary"
		}
		parent.CreateElement(tag).CreateAttr("document", e.doc.id)
		return
	}
	sub := parent.CreateElement("col:subcollection")
	sub.CreateElement("md:title").SetText(e.title)
	if len(e.slug) > 0 {
		sub.CreateElement("md:slug").SetText(e.slug)
	}
	content := sub.CreateElement("col:content")
	for _, c := range e.children {
		buildEntry(content, c)
	}
}

func ensureNamespace(el *etree.Element, prefix, uri string) {
	if el.SelectAttr("xmlns:"+prefix) == nil {
		el.CreateAttr("xmlns:"+prefix, uri)
	}
}

// writeTitle changes title element of the document in place, the rest of
// the file is kept byte for byte as parser preserves whitespace.
func writeTitle(d *document, title string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(d.absPath); err != nil {
		return fmt.Errorf("unable to read document %s: %w", d.absPath, err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("document %s is empty", d.absPath)
	}
	el := root.SelectElement("title")
	if el == nil {
		el = etree.NewElement("title")
		root.InsertChildAt(0, el)
	}
	el.SetText(title)
	if err := doc.WriteToFile(d.absPath); err != nil {
		return fmt.Errorf("unable to write document %s: %w", d.absPath, err)
	}
	return nil
}

// nextDocumentID returns first unused id after the largest known one for
// prefix: m00041 is followed by m00042.
func (b *Bundle) nextDocumentID(dir, prefix string) (string, error) {
	last := 0
	for _, d := range b.docs {
		if n, ok := strings.CutPrefix(d.id, prefix); ok {
			if v, err := strconv.Atoi(n); err == nil && v > last {
				last = v
			}
		}
	}
	for n := last + 1; ; n++ {
		id := fmt.Sprintf("%s%05d", prefix, n)
		_, err := os.Stat(filepath.Join(dir, id))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return id, nil
		case err != nil:
			return "", fmt.Errorf("unable to pick document id in %s: %w", dir, err)
		}
	}
}

// createDocument writes CNXML skeleton for new page or ancillary and
// registers it.
func (b *Bundle) createDocument(title string, ancillary bool) (*document, error) {
	dir, prefix := b.cfg.Resolve(b.root, b.cfg.ModulesDir), "m"
	if ancillary {
		dir, prefix = b.cfg.Resolve(b.root, b.cfg.AncillariesDir), "a"
	}
	id, err := b.nextDocumentID(dir, prefix)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("document")
	root.CreateAttr("xmlns", nsCnxml)
	root.CreateAttr("xmlns:md", nsMetadata)
	root.CreateAttr("id", id)
	root.CreateAttr("cnxml-version", "0.7")
	root.CreateAttr("module-id", id)
	root.CreateElement("title").SetText(title)
	md := root.CreateElement("metadata")
	md.CreateAttr("mdml-version", "0.5")
	md.CreateElement("md:uuid").SetText(uuid.NewString())
	root.CreateElement("content")
	doc.Indent(b.cfg.Indent)

	path := filepath.Join(dir, id, indexFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("unable to create document directory: %w", err)
	}
	if err := doc.WriteToFile(path); err != nil {
		return nil, fmt.Errorf("unable to write document %s: %w", path, err)
	}

	d := &document{id: id, absPath: path, ancillary: ancillary, title: title}
	b.docs[path] = d
	return d, nil
}
