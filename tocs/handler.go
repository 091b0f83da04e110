package tocs

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"poet/toc"
)

const (
	titlePrompt     = "Please enter the title"
	titleEmptyError = "Title cannot be empty"
)

// Sender delivers modification request to the authority and waits for its
// acknowledgment.
type Sender interface {
	SendRequest(ctx context.Context, m toc.Modification) error
}

// InputBoxOptions describes title prompt. ValidateInput returns non empty
// message for unacceptable input.
type InputBoxOptions struct {
	Prompt        string
	Value         string
	ValidateInput func(string) string
}

// Prompter asks user for a single line of input. ok is false when user
// cancelled the prompt.
type Prompter interface {
	InputBox(ctx context.Context, opts InputBoxOptions) (value string, ok bool, err error)
}

// Tree is the part of Provider event handler reads.
type Tree interface {
	GetChildren(n toc.Node) []toc.Node
	GetParent(n toc.Node) toc.Node
	GetBookIndex(book *toc.BookToc) (int, bool)
	GetParentBookIndex(n toc.Node) (int, bool)
}

// EventHandler converts editing gestures into modification requests. Every
// public operation sends at most one request.
type EventHandler struct {
	tree         Tree
	sender       Sender
	prompter     Prompter
	workspaceURI string
	log          *zap.Logger
}

func NewEventHandler(tree Tree, sender Sender, prompter Prompter, workspaceURI string, log *zap.Logger) *EventHandler {
	return &EventHandler{
		tree:         tree,
		sender:       sender,
		prompter:     prompter,
		workspaceURI: workspaceURI,
		log:          log.Named("events"),
	}
}

// GetNodeToken returns token of a Subbook, Page or Ancillary.
func GetNodeToken(n toc.Node) (toc.Token, bool) {
	var t toc.Token
	switch v := n.(type) {
	case *toc.Subbook:
		if v != nil {
			t = v.Value.Token
		}
	case *toc.Page:
		if v != nil {
			t = v.Value.Token
		}
	case *toc.Ancillary:
		if v != nil {
			t = v.Value.Token
		}
	}
	return t, len(t) > 0
}

func (h *EventHandler) fireEvent(ctx context.Context, ev toc.Event) error {
	if len(h.workspaceURI) == 0 {
		return ErrNoWorkspace
	}
	h.log.Debug("Sending modification", zap.Stringer("type", ev.EventType()), zap.Any("event", ev))
	if err := h.sender.SendRequest(ctx, toc.Modification{WorkspaceURI: h.workspaceURI, Event: ev}); err != nil {
		return fmt.Errorf("modification %s rejected: %w", ev.EventType(), err)
	}
	return nil
}

// RemoveNode removes node from its book. Removing an orphan does nothing.
func (h *EventHandler) RemoveNode(ctx context.Context, n toc.Node) error {
	token, ok := GetNodeToken(n)
	if !ok {
		return fmt.Errorf("%w, unable to remove", ErrMissingToken)
	}
	bookIndex, ok := h.tree.GetParentBookIndex(n)
	if !ok {
		h.log.Debug("Node is not part of any book, nothing to remove", zap.String("token", token))
		return nil
	}
	return h.fireEvent(ctx, toc.RemoveEvent{NodeToken: token, BookIndex: bookIndex})
}

// MoveNode moves node relative to target. Book root target means top of the
// book, subbook target means its first child and leaf target means sibling
// at the leaf position.
func (h *EventHandler) MoveNode(ctx context.Context, n, target toc.Node) error {
	nodeToken, ok := GetNodeToken(n)
	if !ok {
		return fmt.Errorf("%w for dragged node", ErrMissingToken)
	}

	var (
		bookIndex      int
		newParentToken toc.Token
		newChildIndex  int
	)

	if book, isBook := target.(*toc.BookToc); isBook {
		if bookIndex, ok = h.tree.GetBookIndex(book); !ok {
			return fmt.Errorf("%w for drop target book", ErrNoBookIndex)
		}
	} else {
		if bookIndex, ok = h.tree.GetParentBookIndex(target); !ok {
			return fmt.Errorf("%w for drop target", ErrNoBookIndex)
		}
		switch v := target.(type) {
		case *toc.Subbook:
			newParentToken = v.Value.Token
		default:
			targetToken, ok := GetNodeToken(target)
			if !ok {
				return fmt.Errorf("%w for drop target", ErrMissingToken)
			}
			parent := h.tree.GetParent(target)
			newParentToken, _ = GetNodeToken(parent)
			for i, sibling := range h.tree.GetChildren(parent) {
				if t, _ := GetNodeToken(sibling); t == targetToken {
					newChildIndex = i
					break
				}
			}
		}
	}

	if newParentToken == nodeToken {
		h.log.Debug("Refusing to move node into itself", zap.String("token", nodeToken))
		return nil
	}
	return h.fireEvent(ctx, toc.MoveEvent{
		NodeToken:      nodeToken,
		NewParentToken: newParentToken,
		NewChildIndex:  newChildIndex,
		BookIndex:      bookIndex,
	})
}

// AddNode asks for a title and creates node of requested kind next to (or
// inside of) reference node.
func (h *EventHandler) AddNode(ctx context.Context, kind toc.NodeKind, ref toc.Node, slug string) error {
	title, ok, err := h.AskTitle(ctx, "")
	if err != nil {
		return err
	}
	if !ok {
		h.log.Debug("Title prompt cancelled, nothing to add")
		return nil
	}

	bookIndex := 0
	if book, isBook := ref.(*toc.BookToc); isBook {
		if idx, ok := h.tree.GetBookIndex(book); ok {
			bookIndex = idx
		}
	} else if ref != nil {
		if idx, ok := h.tree.GetParentBookIndex(ref); ok {
			bookIndex = idx
		}
	}

	var parentToken toc.Token
	switch v := ref.(type) {
	case *toc.Subbook:
		parentToken = v.Value.Token
	case *toc.Page, *toc.Ancillary:
		parentToken, _ = GetNodeToken(h.tree.GetParent(v))
	}

	var ev toc.Event
	switch kind {
	case toc.KindSubbook:
		ev = toc.CreateSubbookEvent{Title: title, Slug: slug, BookIndex: bookIndex, ParentNodeToken: parentToken}
	case toc.KindPage:
		ev = toc.CreatePageEvent{Title: title, BookIndex: bookIndex, ParentNodeToken: parentToken}
	case toc.KindAncillary:
		ev = toc.CreateAncillaryEvent{Title: title, BookIndex: bookIndex, ParentNodeToken: parentToken}
	default:
		return fmt.Errorf("unable to create node of kind %q", kind)
	}
	return h.fireEvent(ctx, ev)
}

// RenameNode asks for a new title and renames node. Token and book index are
// resolved before looking at the prompt result, so a broken node reports an
// error even when user cancelled.
func (h *EventHandler) RenameNode(ctx context.Context, n toc.Node) error {
	var current string
	switch v := n.(type) {
	case *toc.Subbook:
		current = v.Value.Title
	case *toc.Page, *toc.Ancillary:
		if val, ok := toc.LeafValue(v); ok {
			current = val.Title
		}
	}

	newTitle, ok, err := h.AskTitle(ctx, current)
	if err != nil {
		return err
	}

	token, found := GetNodeToken(n)
	if !found {
		return fmt.Errorf("%w, unable to rename", ErrMissingToken)
	}
	bookIndex, found := h.tree.GetParentBookIndex(n)
	if !found {
		return fmt.Errorf("%w, unable to rename %q", ErrNoBookIndex, token)
	}
	if !ok {
		h.log.Debug("Title prompt cancelled, nothing to rename", zap.String("token", token))
		return nil
	}

	var ev toc.Event
	switch n.(type) {
	case *toc.Page:
		ev = toc.PageRenameEvent{NewTitle: newTitle, NodeToken: token, BookIndex: bookIndex}
	case *toc.Subbook:
		ev = toc.SubbookRenameEvent{NewTitle: newTitle, NodeToken: token, BookIndex: bookIndex}
	case *toc.Ancillary:
		ev = toc.AncillaryRenameEvent{NewTitle: newTitle, NodeToken: token, BookIndex: bookIndex}
	}
	return h.fireEvent(ctx, ev)
}

// ValidateTitle rejects titles which are empty after trimming.
func ValidateTitle(s string) string {
	if len(strings.TrimSpace(s)) == 0 {
		return titleEmptyError
	}
	return ""
}

// AskTitle prompts for non empty title. ok is false when prompt was
// cancelled.
func (h *EventHandler) AskTitle(ctx context.Context, defaultValue string) (string, bool, error) {
	value, ok, err := h.prompter.InputBox(ctx, InputBoxOptions{
		Prompt:        titlePrompt,
		Value:         defaultValue,
		ValidateInput: ValidateTitle,
	})
	if err != nil {
		return "", false, fmt.Errorf("unable to ask for title: %w", err)
	}
	return value, ok, nil
}

// HandleDrag remembers the first of dragged nodes, drag is single node only.
func (h *EventHandler) HandleDrag(sources []toc.Node, transfer DataTransfer) {
	if len(sources) == 0 {
		return
	}
	transfer.Set(TransferMimeType, &TransferItem{Value: sources[0]})
}

// HandleDrop finishes drag session started by HandleDrag. Dropping onto the
// orphan collection removes node from its book, anything else moves it.
func (h *EventHandler) HandleDrop(ctx context.Context, target toc.Node, transfer DataTransfer) error {
	var item *TransferItem
	if transfer != nil {
		item = transfer.Get(TransferMimeType)
	}
	if item == nil || item.Value == nil {
		return ErrBadDragTarget
	}
	if target == nil {
		return ErrBadDropTarget
	}

	dragged := item.Value
	if target == dragged || !toc.IsClientTocNode(dragged) {
		return nil
	}
	if _, ok := target.(*toc.OrphanCollection); ok {
		return h.RemoveNode(ctx, dragged)
	}
	return h.MoveNode(ctx, dragged, target)
}
