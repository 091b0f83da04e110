package tocedit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"poet/config"
	"poet/state"
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
    <md:language>en</md:language>
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
  </col:metadata>
  <col:content>
    <col:ancillary document="a00001"/>
  </col:content>
</col:collection>
`

// fullTree is how newWorkspace looks when rendered.
const fullTree = `Physics (physics)
  Kinematics
    Motion (m00001)
    Speed & Velocity (m00002)
  Forces (m00003)
Chemistry (chemistry)
  Lab safety (a00001)
Orphaned Pages
  UntitledFile (m9)
  Loose ten (m10)
`

func page(title string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<document xmlns="http://cnx.rice.edu/cnxml" xmlns:md="http://cnx.rice.edu/mdml" cnxml-version="0.7">
  <title>` + title + `</title>
  <content/>
</document>
`
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

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
	writeFile(t, root, "modules/m9/index.cnxml", `<document xmlns="http://cnx.rice.edu/cnxml"><content/></document>`)
	writeFile(t, root, "ancillaries/a00001/index.cnxml", page("Lab safety"))
	return root
}

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

// invocation runs single action the way main does, with default
// configuration and captured output.
type invocation struct {
	action cli.ActionFunc
	flags  func() []cli.Flag
	stdin  string
	config func(*config.Config)
}

func (inv invocation) run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if inv.config != nil {
		inv.config(cfg)
	}
	var out bytes.Buffer
	env.Cfg = cfg
	env.Log = testLogger(t)
	env.Stdin = strings.NewReader(inv.stdin)
	env.Stdout = &out

	flags := Flags()
	if inv.flags != nil {
		flags = append(flags, inv.flags()...)
	}
	cmd := &cli.Command{
		Name:   "test",
		Flags:  flags,
		Action: inv.action,
	}
	err = cmd.Run(ctx, append([]string{"test", "--workspace", root}, args...))
	return out.String(), err
}

// flags keep parsed values, every invocation gets its own
func showFlags() []cli.Flag {
	return []cli.Flag{&cli.BoolFlag{Name: "json"}, &cli.BoolFlag{Name: "details"}, &cli.StringFlag{Name: "snapshot"}}
}

func titleFlags() []cli.Flag {
	return []cli.Flag{&cli.StringFlag{Name: "title"}, &cli.StringFlag{Name: "slug"}}
}
