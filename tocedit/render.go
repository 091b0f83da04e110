package tocedit

import (
	"context"
	"math"

	"poet/toc"
	"poet/tocs"
	"poet/utils/debug"
)

// textView is a tree view rendered as indented text. It only tracks which
// nodes are expanded, everything else comes from provider.
type textView struct {
	provider *tocs.Provider
	expanded map[toc.Node]int
	revealed []toc.Node
}

func newTextView(p *tocs.Provider) *textView {
	return &textView{provider: p, expanded: make(map[toc.Node]int)}
}

// Reveal makes n visible by expanding its ancestors and expands n itself
// expand levels down.
func (v *textView) Reveal(ctx context.Context, n toc.Node, expand int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.revealed = append(v.revealed, n)

	parent := v.provider.GetParent(n)
	if parent == nil && toc.IsLeaf(n) {
		// top level leaves live under orphan collection
		v.expand(v.provider.Orphans(), 1)
	}
	for ; parent != nil; parent = v.provider.GetParent(parent) {
		v.expand(parent, 1)
	}
	v.expand(n, expand)
	return nil
}

func (v *textView) expand(n toc.Node, levels int) {
	if levels > v.expanded[n] {
		v.expanded[n] = levels
	}
}

type renderOptions struct {
	// nil view renders fully expanded tree
	view    *textView
	details bool
}

func render(p *tocs.Provider, opts renderOptions) *debug.TreeWriter {
	tw := debug.NewTreeWriter()

	var visit func(n toc.Node, depth, levels int)
	visit = func(n toc.Node, depth, levels int) {
		item := p.GetTreeItem(n)
		kids := p.GetChildren(n)
		if opts.view != nil {
			levels = max(levels, opts.view.expanded[n])
		}

		label := item.Label
		if len(item.Description) > 0 {
			label += " (" + item.Description + ")"
		}
		if len(kids) > 0 && levels <= 0 {
			label += " +"
		}
		tw.Line(depth, "%s", label)

		if opts.details {
			token, _ := tocs.GetNodeToken(n)
			tw.Field(depth+1, "token", token)
			tw.Field(depth+1, "path", item.ResourceURI)
		}
		if levels <= 0 {
			return
		}
		for _, k := range kids {
			visit(k, depth+1, levels-1)
		}
	}

	levels := math.MaxInt
	if opts.view != nil {
		levels = 0
	}
	for _, b := range p.Books() {
		visit(b, 0, levels)
	}
	if orphans := p.Orphans(); len(p.GetChildren(orphans)) > 0 {
		visit(orphans, 0, levels)
	}
	return tw
}
