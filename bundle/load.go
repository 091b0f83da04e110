package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// maxPeekTitle limits quick title extraction, longer titles are read with
// the full parser.
const maxPeekTitle = 280

// load reads all books listed in manifest and all documents found in
// modules and ancillaries directories. Problems in separate files are
// reported together.
func (b *Bundle) load() error {
	paths, err := b.collectionPaths()
	if err != nil {
		return err
	}

	var errs error
	for _, path := range paths {
		bk, err := b.loadCollection(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		b.books = append(b.books, bk)
	}
	errs = multierr.Append(errs, b.scanDocuments(b.cfg.Resolve(b.root, b.cfg.ModulesDir), false))
	errs = multierr.Append(errs, b.scanDocuments(b.cfg.Resolve(b.root, b.cfg.AncillariesDir), true))
	return errs
}

// collectionPaths lists collections in manifest order. Without manifest every
// collection file in collections directory is a book.
func (b *Bundle) collectionPaths() ([]string, error) {
	manifest := b.cfg.Resolve(b.root, b.cfg.BooksManifest)

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(manifest); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to read books manifest %s: %w", manifest, err)
		}
		b.log.Debug("No books manifest, looking for collections", zap.String("manifest", manifest))
		return b.globCollections()
	}

	root := doc.Root()
	if root == nil || root.Tag != "container" {
		return nil, fmt.Errorf("books manifest %s: root element is not a container", manifest)
	}

	var (
		paths []string
		errs  error
	)
	for _, el := range root.ChildElements() {
		if el.Tag != "book" {
			continue
		}
		href := el.SelectAttrValue("href", "")
		if len(href) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("books manifest %s: missing href attribute on book %q", manifest, el.SelectAttrValue("slug", "")))
			continue
		}
		paths = append(paths, filepath.Join(filepath.Dir(manifest), filepath.FromSlash(href)))
	}
	return paths, errs
}

func (b *Bundle) globCollections() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(b.cfg.Resolve(b.root, b.cfg.CollectionsDir), "*.collection.xml"))
	if err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(paths))
	return paths, nil
}

func (b *Bundle) loadCollection(path string) (*book, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("unable to read collection %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "collection" {
		return nil, fmt.Errorf("collection %s: root element is not a collection", path)
	}

	bk := &book{absPath: path, xml: doc}
	if md := root.SelectElement("metadata"); md != nil {
		bk.title = childText(md, "title")
		bk.slug = childText(md, "slug")
		bk.uuid = childText(md, "uuid")
		bk.language = b.canonicalLanguage(path, childText(md, "language"))
		if lic := md.SelectElement("license"); lic != nil {
			bk.licenseURL = lic.SelectAttrValue("url", "")
		}
	}

	content := root.SelectElement("content")
	if content == nil {
		return nil, fmt.Errorf("collection %s: missing content element", path)
	}
	tree, err := b.parseContent(content)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", path, err)
	}
	bk.toc = tree
	return bk, nil
}

func (b *Bundle) parseContent(content *etree.Element) ([]*entry, error) {
	var (
		list []*entry
		errs error
	)
	for _, el := range content.ChildElements() {
		switch el.Tag {
		case "subcollection":
			e := &entry{title: childText(el, "title"), slug: childText(el, "slug")}
			if inner := el.SelectElement("content"); inner != nil {
				children, err := b.parseContent(inner)
				errs = multierr.Append(errs, err)
				e.children = children
			}
			list = append(list, e)
		case "module", "ancillary":
			id := el.SelectAttrValue("document", "")
			if len(id) == 0 {
				errs = multierr.Append(errs, fmt.Errorf("%s element without document attribute", el.Tag))
				continue
			}
			list = append(list, &entry{doc: b.document(id, el.Tag == "ancillary")})
		}
	}
	return list, errs
}

// scanDocuments registers every <dir>/<id>/index.cnxml, absent directory is
// not an error.
func (b *Bundle) scanDocuments(dir string, ancillary bool) error {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to list documents: %w", err)
	}
	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, item.Name(), indexFile)); err != nil {
			continue
		}
		b.document(item.Name(), ancillary)
	}
	return nil
}

// document returns registered document, registering it on first use.
func (b *Bundle) document(id string, ancillary bool) *document {
	dir := b.cfg.ModulesDir
	if ancillary {
		dir = b.cfg.AncillariesDir
	}
	path := filepath.Join(b.cfg.Resolve(b.root, dir), id, indexFile)
	if d, ok := b.docs[path]; ok {
		return d
	}

	d := &document{id: id, absPath: path, ancillary: ancillary}
	title, err := peekTitle(path)
	if err != nil {
		// title stays empty and document is shown as still loading
		b.log.Warn("Unable to read document title", zap.String("path", path), zap.Error(err))
	}
	d.title = title
	b.docs[path] = d
	return d
}

func (b *Bundle) canonicalLanguage(path, lang string) string {
	if len(lang) == 0 {
		return lang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		b.log.Warn("Book language is not a valid BCP 47 tag", zap.String("collection", path), zap.String("language", lang), zap.Error(err))
		return lang
	}
	return tag.String()
}

// peekTitle extracts document title without parsing whole document. When
// quick look is not enough full parser is used.
func peekTitle(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	s := string(data)
	const openTag, closeTag = "<title>", "</title>"
	start, end := strings.Index(s, openTag), strings.Index(s, closeTag)
	if start >= 0 && end > start {
		start += len(openTag)
		if raw := s[start:end]; len(raw) <= maxPeekTitle && !strings.ContainsAny(raw, "<&") {
			return strings.TrimSpace(raw), nil
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("unable to parse document: %w", err)
	}
	if root := doc.Root(); root != nil {
		if title := root.SelectElement("title"); title != nil {
			return strings.TrimSpace(title.Text()), nil
		}
	}
	return UntitledFile, nil
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
