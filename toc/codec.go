package toc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSON wire form of nodes and events. Every object carries "type" with the
// discriminant string, node payloads live under "value".

type wireBook struct {
	Type       NodeKind          `json:"type"`
	AbsPath    string            `json:"absPath"`
	UUID       string            `json:"uuid"`
	Title      string            `json:"title"`
	Slug       string            `json:"slug"`
	Language   string            `json:"language"`
	LicenseURL string            `json:"licenseUrl"`
	TocTree    []json.RawMessage `json:"tocTree"`
}

type wireSubbook struct {
	Type     NodeKind          `json:"type"`
	Value    SubbookValue      `json:"value"`
	Children []json.RawMessage `json:"children"`
}

type wireLeaf struct {
	Type  NodeKind  `json:"type"`
	Value PageValue `json:"value"`
}

type wireKind struct {
	Type string `json:"type"`
}

func (b *BookToc) MarshalJSON() ([]byte, error) {
	tree, err := marshalNodes(b.TocTree)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireBook{
		Type:       KindBook,
		AbsPath:    b.AbsPath,
		UUID:       b.UUID,
		Title:      b.Title,
		Slug:       b.Slug,
		Language:   b.Language,
		LicenseURL: b.LicenseURL,
		TocTree:    tree,
	})
}

func (s *Subbook) MarshalJSON() ([]byte, error) {
	kids, err := marshalNodes(s.Children)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireSubbook{Type: KindSubbook, Value: s.Value, Children: kids})
}

func (p *Page) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireLeaf{Type: KindPage, Value: p.Value})
}

func (a *Ancillary) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireLeaf{Type: KindAncillary, Value: a.Value})
}

func (o *OrphanCollection) MarshalJSON() ([]byte, error) {
	kids, err := marshalNodes(o.Children)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type     NodeKind          `json:"type"`
		Children []json.RawMessage `json:"children"`
	}{KindOrphans, kids})
}

func marshalNodes(nodes []Node) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(nodes))
	for i, n := range nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// DecodeNode restores a node from its wire form.
func DecodeNode(data []byte) (Node, error) {
	var k wireKind
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("unable to read node type: %w", err)
	}
	switch NodeKind(k.Type) {
	case KindBook:
		var w wireBook
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		tree, err := decodeNodes(w.TocTree)
		if err != nil {
			return nil, fmt.Errorf("book %q: %w", w.AbsPath, err)
		}
		return &BookToc{
			AbsPath:    w.AbsPath,
			UUID:       w.UUID,
			Title:      w.Title,
			Slug:       w.Slug,
			Language:   w.Language,
			LicenseURL: w.LicenseURL,
			TocTree:    tree,
		}, nil
	case KindSubbook:
		var w wireSubbook
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		kids, err := decodeNodes(w.Children)
		if err != nil {
			return nil, fmt.Errorf("subbook %q: %w", w.Value.Token, err)
		}
		return &Subbook{Value: w.Value, Children: kids}, nil
	case KindPage:
		var w wireLeaf
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return &Page{Value: w.Value}, nil
	case KindAncillary:
		var w wireLeaf
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return &Ancillary{Value: w.Value}, nil
	case KindOrphans:
		var w struct {
			Children []json.RawMessage `json:"children"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		kids, err := decodeNodes(w.Children)
		if err != nil {
			return nil, err
		}
		return &OrphanCollection{Children: kids}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", k.Type)
	}
}

func decodeNodes(raw []json.RawMessage) ([]Node, error) {
	out := make([]Node, 0, len(raw))
	for i, r := range raw {
		n, err := DecodeNode(r)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	books := make([]Node, 0, len(s.Books))
	for _, b := range s.Books {
		books = append(books, b)
	}
	bs, err := marshalNodes(books)
	if err != nil {
		return nil, err
	}
	orphans, err := marshalNodes(s.Orphans)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Books   []json.RawMessage `json:"books"`
		Orphans []json.RawMessage `json:"orphans"`
	}{bs, orphans})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w struct {
		Books   []json.RawMessage `json:"books"`
		Orphans []json.RawMessage `json:"orphans"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	books, err := decodeNodes(w.Books)
	if err != nil {
		return fmt.Errorf("books: %w", err)
	}
	s.Books = make([]*BookToc, 0, len(books))
	for i, n := range books {
		b, ok := n.(*BookToc)
		if !ok {
			return fmt.Errorf("books: entry %d is %s, not a book", i, n.Kind())
		}
		s.Books = append(s.Books, b)
	}
	if s.Orphans, err = decodeNodes(w.Orphans); err != nil {
		return fmt.Errorf("orphans: %w", err)
	}
	return nil
}

// Every event is marshaled through a local plain type (no methods) embedded
// next to the discriminant so its fields are promoted.

func (e MoveEvent) MarshalJSON() ([]byte, error) {
	type plain MoveEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

func (e RemoveEvent) MarshalJSON() ([]byte, error) {
	type plain RemoveEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

func (e PageRenameEvent) MarshalJSON() ([]byte, error) {
	type plain PageRenameEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

func (e SubbookRenameEvent) MarshalJSON() ([]byte, error) {
	type plain SubbookRenameEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

func (e AncillaryRenameEvent) MarshalJSON() ([]byte, error) {
	type plain AncillaryRenameEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

func (e CreateSubbookEvent) MarshalJSON() ([]byte, error) {
	type plain CreateSubbookEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

func (e CreatePageEvent) MarshalJSON() ([]byte, error) {
	type plain CreatePageEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

func (e CreateAncillaryEvent) MarshalJSON() ([]byte, error) {
	type plain CreateAncillaryEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.EventType(), plain(e)})
}

// DecodeEvent restores an event from its wire form.
func DecodeEvent(data []byte) (Event, error) {
	var k wireKind
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("unable to read event type: %w", err)
	}
	var (
		ev  Event
		err error
	)
	switch EventType(k.Type) {
	case EventMove:
		ev, err = decodeAs[MoveEvent](data)
	case EventRemove:
		ev, err = decodeAs[RemoveEvent](data)
	case EventPageRename:
		ev, err = decodeAs[PageRenameEvent](data)
	case EventSubbookRename:
		ev, err = decodeAs[SubbookRenameEvent](data)
	case EventAncillaryRename:
		ev, err = decodeAs[AncillaryRenameEvent](data)
	case EventCreateSubbook:
		ev, err = decodeAs[CreateSubbookEvent](data)
	case EventCreatePage:
		ev, err = decodeAs[CreatePageEvent](data)
	case EventCreateAncillary:
		ev, err = decodeAs[CreateAncillaryEvent](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", k.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", k.Type, err)
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	// "type" is an unknown field for the concrete structs and is ignored
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeModification restores a request from its wire form.
func DecodeModification(data []byte) (Modification, error) {
	var w struct {
		WorkspaceURI string          `json:"workspaceUri"`
		Event        json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return Modification{}, err
	}
	if len(w.Event) == 0 {
		return Modification{}, errors.New("modification has no event")
	}
	ev, err := DecodeEvent(w.Event)
	if err != nil {
		return Modification{}, err
	}
	return Modification{WorkspaceURI: w.WorkspaceURI, Event: ev}, nil
}
