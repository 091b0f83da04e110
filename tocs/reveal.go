package tocs

import (
	"context"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"

	"poet/toc"
)

// MaxRevealDepth is the deepest expansion host tree view supports in one
// reveal request.
const MaxRevealDepth = 3

// TreeView is the host view able to expand nodes.
type TreeView interface {
	Reveal(ctx context.Context, n toc.Node, expand int) error
}

// RevealProvider is the part of Provider reveal controller needs.
type RevealProvider interface {
	ToggleFilterMode()
	GetChildren(n toc.Node) []toc.Node
	GetParent(n toc.Node) toc.Node
}

// RevealController toggles filter mode and expands view so that every leaf
// becomes visible. Overlapping calls are dropped, not queued.
type RevealController struct {
	view      TreeView
	provider  RevealProvider
	revealing atomic.Bool
	log       *zap.Logger
}

func NewRevealController(view TreeView, provider RevealProvider, log *zap.Logger) *RevealController {
	return &RevealController{view: view, provider: provider, log: log.Named("reveal")}
}

// Toggle flips filter mode and reveals all leaves. Returns immediately when
// another Toggle is in progress.
func (c *RevealController) Toggle(ctx context.Context) error {
	if !c.revealing.CompareAndSwap(false, true) {
		c.log.Debug("Reveal in progress, ignoring request")
		return nil
	}
	defer c.revealing.Store(false)

	c.provider.ToggleFilterMode()

	var leaves []toc.Node
	collectLeaves(&leaves, c.provider.GetChildren(nil))

	// host expands at most MaxRevealDepth levels, so start from the highest
	// ancestor within reach of every leaf
	var (
		tops []toc.Node
		seen = make(map[toc.Node]struct{})
	)
	for _, l := range leaves {
		top := l
		for range MaxRevealDepth {
			p := c.provider.GetParent(top)
			if p == nil {
				break
			}
			top = p
		}
		if _, ok := seen[top]; !ok {
			seen[top] = struct{}{}
			tops = append(tops, top)
		}
	}

	for _, n := range slices.Backward(tops) {
		if err := c.view.Reveal(ctx, n, MaxRevealDepth); err != nil {
			return err
		}
	}
	c.log.Debug("Revealed tree", zap.Int("leaves", len(leaves)), zap.Int("nodes", len(tops)))
	return nil
}

func collectLeaves(acc *[]toc.Node, nodes []toc.Node) {
	for _, n := range nodes {
		switch v := n.(type) {
		case *toc.BookToc:
			collectLeaves(acc, v.TocTree)
		case *toc.Subbook:
			collectLeaves(acc, v.Children)
		case *toc.OrphanCollection:
			collectLeaves(acc, v.Children)
		default:
			*acc = append(*acc, n)
		}
	}
}
