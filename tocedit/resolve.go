package tocedit

import (
	"errors"
	"fmt"
	"strings"

	"poet/toc"
	"poet/tocs"
)

// OrphansSelector addresses orphan collection.
const OrphansSelector = "orphans"

var (
	ErrNoSelector = errors.New("node selector is empty")
	ErrNoSuchNode = errors.New("no node matches selector")
)

// resolve finds node addressed by selector. Accepted forms, in order of
// precedence:
//
//	orphans                   orphan collection
//	<token>                   any node carrying the token
//	<book slug>               book
//	<book slug>/<title>/...   subbook by titles of the subbooks leading to it
//	<file id>                 page or ancillary, placement in a book wins over orphan
func resolve(p *tocs.Provider, selector string) (toc.Node, error) {
	selector = strings.TrimSpace(selector)
	if len(selector) == 0 {
		return nil, ErrNoSelector
	}
	if selector == OrphansSelector {
		return p.Orphans(), nil
	}

	roots := make([]toc.Node, 0, len(p.Books())+1)
	for _, b := range p.Books() {
		roots = append(roots, b)
	}
	roots = append(roots, p.Orphans())

	if n := findNode(roots, func(n toc.Node) bool {
		token, ok := tocs.GetNodeToken(n)
		return ok && token == selector
	}); n != nil {
		return n, nil
	}

	slug, rest, nested := strings.Cut(selector, "/")
	for _, b := range p.Books() {
		if b.Slug != slug {
			continue
		}
		if !nested {
			return b, nil
		}
		if n := subbookByPath(b.TocTree, strings.Split(rest, "/")); n != nil {
			return n, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrNoSuchNode, selector)
	}

	if n := findNode(roots, func(n toc.Node) bool {
		v, ok := toc.LeafValue(n)
		return ok && v.FileID == selector
	}); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSuchNode, selector)
}

func findNode(roots []toc.Node, match func(toc.Node) bool) (found toc.Node) {
	stop := errors.New("found")
	_ = toc.Walk(roots, func(n, _ toc.Node) error {
		if match(n) {
			found = n
			return stop
		}
		return nil
	})
	return found
}

func subbookByPath(nodes []toc.Node, titles []string) toc.Node {
	for _, n := range nodes {
		sub, ok := n.(*toc.Subbook)
		if !ok || sub.Value.Title != titles[0] {
			continue
		}
		if len(titles) == 1 {
			return sub
		}
		if found := subbookByPath(sub.Children, titles[1:]); found != nil {
			return found
		}
	}
	return nil
}

// parseKind maps command line kind names onto node kinds which may be
// created.
func parseKind(name string) (toc.NodeKind, error) {
	switch strings.ToLower(name) {
	case "page":
		return toc.KindPage, nil
	case "subbook":
		return toc.KindSubbook, nil
	case "ancillary":
		return toc.KindAncillary, nil
	}
	return "", fmt.Errorf("unknown node kind %q (supported kinds: page, subbook, ancillary)", name)
}
