package tocs

import (
	"context"
	"errors"
	"testing"

	"poet/toc"
)

type revealCall struct {
	node   toc.Node
	expand int
}

type fakeView struct {
	calls  []revealCall
	onCall func(n int)
	err    error
}

func (v *fakeView) Reveal(_ context.Context, n toc.Node, expand int) error {
	v.calls = append(v.calls, revealCall{n, expand})
	if v.onCall != nil {
		v.onCall(len(v.calls) - 1)
	}
	return v.err
}

// countingProvider wraps Provider counting calls the controller makes.
type countingProvider struct {
	*Provider
	toggles  int
	children int
	panicky  bool
}

func (c *countingProvider) ToggleFilterMode() {
	c.toggles++
	if c.panicky {
		panic("toggle failed")
	}
	c.Provider.ToggleFilterMode()
}

func (c *countingProvider) GetChildren(n toc.Node) []toc.Node {
	if n == nil {
		c.children++
	}
	return c.Provider.GetChildren(n)
}

func TestRevealControllerExpandsFromHighestAncestor(t *testing.T) {
	deep := &toc.Page{Value: toc.PageValue{Token: "m2", FileID: "m2"}}
	inner := &toc.Subbook{Value: toc.SubbookValue{Token: "subcol1"}, Children: []toc.Node{deep}}
	unit := &toc.Subbook{Value: toc.SubbookValue{Token: "unit1"}, Children: []toc.Node{inner}}
	first := &toc.BookToc{AbsPath: "/a", TocTree: []toc.Node{unit}}

	shallow := &toc.Page{Value: toc.PageValue{Token: "m1", FileID: "m1"}}
	second := &toc.BookToc{AbsPath: "/b", TocTree: []toc.Node{shallow}}

	orphan := &toc.Page{Value: toc.PageValue{Token: "o1", FileID: "o1"}}

	p := &countingProvider{Provider: NewProvider()}
	p.Update([]*toc.BookToc{first, second}, []toc.Node{orphan})

	view := &fakeView{}
	c := NewRevealController(view, p, testLogger(t))
	if err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	if p.toggles != 1 || p.children != 1 {
		t.Errorf("toggles = %d, getChildren = %d; want 1 and 1", p.toggles, p.children)
	}
	if !p.FilterMode() {
		t.Errorf("filter mode should be on")
	}
	// deep leaf reaches book through 3 parents, shallow one through 1,
	// orphan has none; reveal goes in reverse order
	want := []toc.Node{orphan, second, first}
	if len(view.calls) != len(want) {
		t.Fatalf("reveal called %d times, want %d", len(view.calls), len(want))
	}
	for i, w := range want {
		if view.calls[i].node != w {
			t.Errorf("reveal %d got %v, want %v", i, view.calls[i].node, w)
		}
		if view.calls[i].expand != MaxRevealDepth {
			t.Errorf("reveal %d expand = %d", i, view.calls[i].expand)
		}
	}
}

func TestRevealControllerStopsAtThreeLevels(t *testing.T) {
	leaf := &toc.Page{Value: toc.PageValue{Token: "leaf"}}
	l3 := &toc.Subbook{Value: toc.SubbookValue{Token: "l3"}, Children: []toc.Node{leaf}}
	l2 := &toc.Subbook{Value: toc.SubbookValue{Token: "l2"}, Children: []toc.Node{l3}}
	l1 := &toc.Subbook{Value: toc.SubbookValue{Token: "l1"}, Children: []toc.Node{l2}}
	book := &toc.BookToc{AbsPath: "/deep", TocTree: []toc.Node{l1}}

	p := NewProvider()
	p.Update([]*toc.BookToc{book}, nil)
	view := &fakeView{}
	if err := NewRevealController(view, p, testLogger(t)).Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if len(view.calls) != 1 || view.calls[0].node != toc.Node(l1) {
		t.Fatalf("reveal calls %+v, want single reveal of l1", view.calls)
	}
}

func TestRevealControllerIgnoresNestedCalls(t *testing.T) {
	page := &toc.Page{Value: toc.PageValue{Token: "m1"}}
	book := &toc.BookToc{AbsPath: "/a", TocTree: []toc.Node{page}}
	p := &countingProvider{Provider: NewProvider()}
	p.Update([]*toc.BookToc{book}, nil)

	view := &fakeView{}
	c := NewRevealController(view, p, testLogger(t))
	nestedErr := errors.New("unset")
	view.onCall = func(n int) {
		if n == 0 {
			nestedErr = c.Toggle(context.Background())
		}
	}

	if err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if nestedErr != nil {
		t.Errorf("nested Toggle returned %v, want nil", nestedErr)
	}
	if p.toggles != 1 || p.children != 1 || len(view.calls) != 1 {
		t.Errorf("toggles = %d, getChildren = %d, reveals = %d; want 1, 1, 1", p.toggles, p.children, len(view.calls))
	}
}

func TestRevealControllerUnlocksAfterFailure(t *testing.T) {
	t.Run("panic", func(t *testing.T) {
		p := &countingProvider{Provider: NewProvider(), panicky: true}
		c := NewRevealController(&fakeView{}, p, testLogger(t))
		for range 2 {
			func() {
				defer func() { _ = recover() }()
				_ = c.Toggle(context.Background())
			}()
		}
		if p.toggles != 2 {
			t.Errorf("toggles = %d, want 2", p.toggles)
		}
	})

	t.Run("reveal error", func(t *testing.T) {
		page := &toc.Page{Value: toc.PageValue{Token: "m1"}}
		p := &countingProvider{Provider: NewProvider()}
		p.Update(nil, []toc.Node{page})
		boom := errors.New("view gone")
		c := NewRevealController(&fakeView{err: boom}, p, testLogger(t))
		if err := c.Toggle(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		_ = c.Toggle(context.Background())
		if p.toggles != 2 {
			t.Errorf("toggles = %d, want 2", p.toggles)
		}
	})
}
