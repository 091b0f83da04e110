package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"poet/config"
	"poet/toc"
)

const booksXML = `<?xml version="1.0" encoding="UTF-8"?>
<container xmlns="https://openstax.org/namespaces/book-container" version="1">
  <book slug="physics" style="dummy" href="../collections/physics.collection.xml"/>
  <book slug="chemistry" style="dummy" href="../collections/chemistry.collection.xml"/>
</container>
`

const physicsXML = `<col:collection xmlns:col="http://cnx.rice.edu/collxml" xmlns:md="http://cnx.rice.edu/mdml" xmlns="http://cnx.rice.edu/collxml">
  <col:metadata>
    <md:title>Physics</md:title>
    <md:slug>physics</md:slug>
    <md:language>en-us</md:language>
    <md:uuid>a1b2c3d4-0000-4000-8000-000000000001</md:uuid>
    <md:license url="http://creativecommons.org/licenses/by/4.0/"/>
  </col:metadata>
  <col:content>
    <col:subcollection>
      <md:title>Kinematics</md:title>
      <col:content>
        <col:module document="m00001"/>
        <col:module document="m00002"/>
      </col:content>
    </col:subcollection>
    <col:module document="m00003"/>
  </col:content>
</col:collection>
`

const chemistryXML = `<col:collection xmlns:col="http://cnx.rice.edu/collxml" xmlns:md="http://cnx.rice.edu/mdml" xmlns="http://cnx.rice.edu/collxml">
  <col:metadata>
    <md:title>Chemistry</md:title>
    <md:slug>chemistry</md:slug>
    <md:language>en</md:language>
  </col:metadata>
  <col:content>
    <col:ancillary document="a00001"/>
  </col:content>
</col:collection>
`

func page(title string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<document xmlns="http://cnx.rice.edu/cnxml" xmlns:md="http://cnx.rice.edu/mdml" cnxml-version="0.7">
  <title>` + title + `</title>
  <metadata mdml-version="0.5">
    <md:title>metadata title is ignored</md:title>
  </metadata>
  <content>
    <para id="p1">Body</para>
  </content>
</document>
`
}

const untitledPage = `<document xmlns="http://cnx.rice.edu/cnxml"><content/></document>`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newWorkspace lays out two books: physics with a subbook and a page,
// chemistry with an ancillary. Pages m9 and m10 are referenced nowhere.
func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "META-INF/books.xml", booksXML)
	writeFile(t, root, "collections/physics.collection.xml", physicsXML)
	writeFile(t, root, "collections/chemistry.collection.xml", chemistryXML)
	writeFile(t, root, "modules/m00001/index.cnxml", page("Motion"))
	writeFile(t, root, "modules/m00002/index.cnxml", page("Speed &amp; Velocity"))
	writeFile(t, root, "modules/m00003/index.cnxml", page("Forces"))
	writeFile(t, root, "modules/m10/index.cnxml", page("Loose ten"))
	writeFile(t, root, "modules/m9/index.cnxml", untitledPage)
	writeFile(t, root, "ancillaries/a00001/index.cnxml", page("Lab safety"))
	return root
}

func testConfig() config.WorkspaceConfig {
	return config.WorkspaceConfig{
		BooksManifest:      "META-INF/books.xml",
		CollectionsDir:     "collections",
		ModulesDir:         "modules",
		AncillariesDir:     "ancillaries",
		Indent:             2,
		NaturalSortOrphans: true,
	}
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func openWorkspace(t *testing.T, root string, options ...Option) *Bundle {
	t.Helper()
	b, err := Open(root, testConfig(), testLogger(t), options...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b
}

// leafByID finds leaf with file id anywhere in the snapshot.
func leafByID(snap toc.Snapshot, id string) (toc.Node, toc.Node) {
	var found, parent toc.Node
	roots := make([]toc.Node, 0, len(snap.Books)+len(snap.Orphans))
	for _, bk := range snap.Books {
		roots = append(roots, bk)
	}
	roots = append(roots, snap.Orphans...)
	_ = toc.Walk(roots, func(n, p toc.Node) error {
		if v, ok := toc.LeafValue(n); ok && v.FileID == id && found == nil {
			found, parent = n, p
		}
		return nil
	})
	return found, parent
}

func tokenOf(t *testing.T, n toc.Node) toc.Token {
	t.Helper()
	switch n := n.(type) {
	case *toc.Subbook:
		return n.Value.Token
	default:
		v, ok := toc.LeafValue(n)
		if !ok {
			t.Fatalf("node %T has no token", n)
		}
		return v.Token
	}
}

func ids(nodes []toc.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if v, ok := toc.LeafValue(n); ok {
			out = append(out, v.FileID)
		} else if s, ok := n.(*toc.Subbook); ok {
			out = append(out, "["+s.Value.Title+"]")
		}
	}
	return out
}

func send(t *testing.T, b *Bundle, ev toc.Event) error {
	t.Helper()
	return b.SendRequest(context.Background(), toc.Modification{WorkspaceURI: b.URI(), Event: ev})
}

type memoryStore struct {
	tokens map[string]toc.Token
	saves  int
}

func (m *memoryStore) Token(_ context.Context, key string) (toc.Token, bool, error) {
	t, ok := m.tokens[key]
	return t, ok, nil
}

func (m *memoryStore) SaveToken(_ context.Context, key string, token toc.Token) error {
	m.tokens[key] = token
	m.saves++
	return nil
}
