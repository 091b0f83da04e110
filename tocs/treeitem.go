package tocs

import (
	"strings"

	"poet/toc"
)

// CollapsibleState mirrors host tree view expansion states.
type CollapsibleState int

const (
	CollapsibleNone CollapsibleState = iota
	CollapsibleCollapsed
	CollapsibleExpanded
)

// Icons used by tree items.
const (
	IconBook      = "book"
	IconSubbook   = "folder"
	IconPage      = "file"
	IconAncillary = "file-media"
	IconOrphans   = "warning"
)

const (
	loadingLabel = "Loading..."
	orphansLabel = "Orphaned Pages"
	openCommand  = "vscode.open"
)

// Command is invoked by the host when item is selected.
type Command struct {
	Title     string
	Command   string
	Arguments []string
}

// TreeItem is display projection of a node.
type TreeItem struct {
	Label            string
	Description      string
	IconPath         string
	CollapsibleState CollapsibleState
	ResourceURI      string
	Command          *Command
	// comma separated capabilities host uses to enable context actions
	ContextValue string
}

func openFile(absPath string) *Command {
	return &Command{Title: "open", Command: openCommand, Arguments: []string{absPath}}
}

// GetTreeItem projects node into display record. In filter mode leaf file
// ids become part of the label so substring search can match them.
func (p *Provider) GetTreeItem(n toc.Node) TreeItem {
	p.mu.RLock()
	filter := p.filterMode
	_, hasParent := p.parents[n]
	p.mu.RUnlock()

	context := func() string {
		caps := []string{"rename"}
		if hasParent {
			caps = append(caps, "delete")
		}
		return strings.Join(caps, ",")
	}

	switch v := n.(type) {
	case *toc.BookToc:
		if v == nil {
			return TreeItem{}
		}
		return TreeItem{
			Label:            v.Title,
			Description:      v.Slug,
			IconPath:         IconBook,
			CollapsibleState: CollapsibleCollapsed,
			ResourceURI:      v.AbsPath,
			Command:          openFile(v.AbsPath),
			ContextValue:     "rename",
		}
	case *toc.Subbook:
		if v == nil {
			return TreeItem{}
		}
		return TreeItem{
			Label:            v.Value.Title,
			IconPath:         IconSubbook,
			CollapsibleState: CollapsibleCollapsed,
			ContextValue:     context(),
		}
	case *toc.Page, *toc.Ancillary:
		val, ok := toc.LeafValue(n)
		if !ok {
			return TreeItem{}
		}
		icon := IconPage
		if n.Kind() == toc.KindAncillary {
			icon = IconAncillary
		}
		title := val.Title
		if title == "" {
			title = loadingLabel
		}
		item := TreeItem{
			IconPath:         icon,
			CollapsibleState: CollapsibleNone,
			ResourceURI:      val.AbsPath,
			Command:          openFile(val.AbsPath),
			ContextValue:     context(),
		}
		if filter {
			item.Label = title + " (" + val.FileID + ")"
		} else {
			item.Label = title
			item.Description = val.FileID
		}
		return item
	case *toc.OrphanCollection:
		return TreeItem{
			Label:            orphansLabel,
			IconPath:         IconOrphans,
			CollapsibleState: CollapsibleCollapsed,
		}
	}
	return TreeItem{}
}
