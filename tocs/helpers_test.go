package tocs

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"poet/toc"
)

const testWorkspace = "file:///workspace"

type recordingSender struct {
	sent []toc.Modification
	err  error
}

func (s *recordingSender) SendRequest(_ context.Context, m toc.Modification) error {
	s.sent = append(s.sent, m)
	return s.err
}

type scriptedPrompter struct {
	value     string
	cancelled bool
	err       error
	asked     []InputBoxOptions
}

func (p *scriptedPrompter) InputBox(_ context.Context, opts InputBoxOptions) (string, bool, error) {
	p.asked = append(p.asked, opts)
	if p.err != nil {
		return "", false, p.err
	}
	if p.cancelled {
		return "", false, nil
	}
	return p.value, true, nil
}

var errPrompt = errors.New("prompt failed")

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

// fixture mirrors a book with a single subbook holding a page and an
// ancillary, plus one orphan page.
type fixture struct {
	book      *toc.BookToc
	subbook   *toc.Subbook
	page      *toc.Page
	ancillary *toc.Ancillary
	orphan    *toc.Page
	provider  *Provider
}

func newFixture() *fixture {
	f := &fixture{
		page: &toc.Page{Value: toc.PageValue{
			Token: "p1", Title: "Page One", FileID: "m00001", AbsPath: "/ws/modules/m00001/index.cnxml",
		}},
		ancillary: &toc.Ancillary{Value: toc.PageValue{
			Token: "a1", Title: "Extra", FileID: "a00001", AbsPath: "/ws/ancillaries/a00001/index.cnxml",
		}},
		orphan: &toc.Page{Value: toc.PageValue{
			Token: "o1", FileID: "m00099", AbsPath: "/ws/modules/m00099/index.cnxml",
		}},
	}
	f.subbook = &toc.Subbook{
		Value:    toc.SubbookValue{Token: "t1", Title: "Chapter 1"},
		Children: []toc.Node{f.page, f.ancillary},
	}
	f.book = &toc.BookToc{
		AbsPath:    "/ws/collections/physics.collection.xml",
		UUID:       "4e0a1fd1-6e2a-4b4a-9a0e-7b2b5b3b0a11",
		Title:      "Physics",
		Slug:       "physics",
		Language:   "en",
		LicenseURL: "http://creativecommons.org/licenses/by/4.0/",
		TocTree:    []toc.Node{f.subbook},
	}
	f.provider = NewProvider()
	f.provider.Update([]*toc.BookToc{f.book}, []toc.Node{f.orphan})
	return f
}

func (f *fixture) handler(t *testing.T, sender Sender, prompter Prompter) *EventHandler {
	t.Helper()
	if prompter == nil {
		prompter = &scriptedPrompter{cancelled: true}
	}
	return NewEventHandler(f.provider, sender, prompter, testWorkspace, testLogger(t))
}
