package tocs

import (
	"sync"

	"poet/toc"
)

// TransferMimeType scopes drag payloads to this tree's own drag sessions.
const TransferMimeType = "application/vnd.code.tree.tocTrees"

// TransferItem carries the dragged node by reference.
type TransferItem struct {
	Value toc.Node
}

// DataTransfer is the host's drag and drop payload store.
type DataTransfer interface {
	Get(mime string) *TransferItem
	Set(mime string, item *TransferItem)
}

// MapTransfer is in-process DataTransfer.
type MapTransfer struct {
	mu    sync.Mutex
	items map[string]*TransferItem
}

func NewMapTransfer() *MapTransfer {
	return &MapTransfer{items: make(map[string]*TransferItem)}
}

func (t *MapTransfer) Get(mime string) *TransferItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items[mime]
}

func (t *MapTransfer) Set(mime string, item *TransferItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[mime] = item
}
