package toc

// EventType is the discriminant of outbound modification events.
type EventType string

const (
	EventMove            EventType = "TocModificationKind.Move"
	EventRemove          EventType = "TocModificationKind.Remove"
	EventPageRename      EventType = "TocModificationKind.PageRename"
	EventSubbookRename   EventType = "TocModificationKind.SubbookRename"
	EventAncillaryRename EventType = "TocModificationKind.AncillaryRename"
	// creation events reuse node kinds as their type
	EventCreateSubbook   EventType = EventType(KindSubbook)
	EventCreatePage      EventType = EventType(KindPage)
	EventCreateAncillary EventType = EventType(KindAncillary)
)

func (t EventType) String() string {
	return string(t)
}

// Event is one of the structural modifications the authority understands.
type Event interface {
	EventType() EventType
	event()
}

// Modification is the single request type sent to the authority.
type Modification struct {
	WorkspaceURI string `json:"workspaceUri"`
	Event        Event  `json:"event"`
}

// MoveEvent moves a node. Empty NewParentToken means the top level of the
// book identified by BookIndex.
type MoveEvent struct {
	NodeToken      Token `json:"nodeToken"`
	NewParentToken Token `json:"newParentToken,omitempty"`
	NewChildIndex  int   `json:"newChildIndex"`
	BookIndex      int   `json:"bookIndex"`
}

type RemoveEvent struct {
	NodeToken Token `json:"nodeToken"`
	BookIndex int   `json:"bookIndex"`
}

type PageRenameEvent struct {
	NewTitle  string `json:"newTitle"`
	NodeToken Token  `json:"nodeToken"`
	BookIndex int    `json:"bookIndex"`
}

type SubbookRenameEvent struct {
	NewTitle  string `json:"newTitle"`
	NodeToken Token  `json:"nodeToken"`
	BookIndex int    `json:"bookIndex"`
}

type AncillaryRenameEvent struct {
	NewTitle  string `json:"newTitle"`
	NodeToken Token  `json:"nodeToken"`
	BookIndex int    `json:"bookIndex"`
}

// CreateSubbookEvent asks for a new subbook. Empty ParentNodeToken means top
// level of the book.
type CreateSubbookEvent struct {
	Title           string `json:"title"`
	Slug            string `json:"slug,omitempty"`
	BookIndex       int    `json:"bookIndex"`
	ParentNodeToken Token  `json:"parentNodeToken,omitempty"`
}

type CreatePageEvent struct {
	Title           string `json:"title"`
	BookIndex       int    `json:"bookIndex"`
	ParentNodeToken Token  `json:"parentNodeToken,omitempty"`
}

type CreateAncillaryEvent struct {
	Title           string `json:"title"`
	BookIndex       int    `json:"bookIndex"`
	ParentNodeToken Token  `json:"parentNodeToken,omitempty"`
}

func (MoveEvent) EventType() EventType            { return EventMove }
func (RemoveEvent) EventType() EventType          { return EventRemove }
func (PageRenameEvent) EventType() EventType      { return EventPageRename }
func (SubbookRenameEvent) EventType() EventType   { return EventSubbookRename }
func (AncillaryRenameEvent) EventType() EventType { return EventAncillaryRename }
func (CreateSubbookEvent) EventType() EventType   { return EventCreateSubbook }
func (CreatePageEvent) EventType() EventType      { return EventCreatePage }
func (CreateAncillaryEvent) EventType() EventType { return EventCreateAncillary }

func (MoveEvent) event()            {}
func (RemoveEvent) event()          {}
func (PageRenameEvent) event()      {}
func (SubbookRenameEvent) event()   {}
func (AncillaryRenameEvent) event() {}
func (CreateSubbookEvent) event()   {}
func (CreatePageEvent) event()      {}
func (CreateAncillaryEvent) event() {}
