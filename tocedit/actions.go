package tocedit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"poet/state"
	"poet/toc"
	"poet/tocs"
)

// Flags returns flags shared by all table of contents commands.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "workspace root `DIRECTORY`, if absent - current working directory"},
		&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "print modification requests instead of applying them"},
	}
}

func withSession(ctx context.Context, cmd *cli.Command, name string, fn func(s *session) error) (err error) {
	s, err := openSession(ctx, cmd, name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.close())
	}()
	return fn(s)
}

// nodes resolves positional arguments starting at first.
func (s *session) nodes(cmd *cli.Command, first, count int) ([]toc.Node, error) {
	if cmd.Args().Len() < first+count {
		return nil, fmt.Errorf("expected %d node selector(s), got %d", count, max(cmd.Args().Len()-first, 0))
	}
	if cmd.Args().Len() > first+count {
		s.log.Warn("Malformed command line, too many arguments", zap.Strings("ignoring", cmd.Args().Slice()[first+count:]))
	}
	out := make([]toc.Node, 0, count)
	for i := range count {
		n, err := resolve(s.provider, cmd.Args().Get(first+i))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// modify runs single editing gesture and reports its outcome.
func (s *session) modify(ctx context.Context, what string, gesture func() error) error {
	changes := 0
	unsubscribe := s.provider.OnDidChangeTreeData(func() { changes++ })
	defer unsubscribe()

	if err := gesture(); err != nil {
		return fmt.Errorf("unable to %s: %w", what, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch {
	case s.env.DryRun:
		s.log.Info("Dry run, workspace not modified", zap.String("action", what))
	case changes == 0:
		s.log.Info("Nothing to do", zap.String("action", what))
	default:
		s.log.Info("Table of contents updated", zap.String("action", what))
		_, err := render(s.provider, renderOptions{}).WriteTo(s.env.Stdout)
		return err
	}
	return nil
}

// Show prints tables of contents of all books followed by orphans. With
// snapshot flag previously saved snapshot is shown instead of workspace.
func Show(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String("snapshot"); len(path) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := loadSnapshot(path)
		if err != nil {
			return err
		}
		return show(cmd, p, state.EnvFromContext(ctx).Stdout)
	}
	return withSession(ctx, cmd, "show", func(s *session) error {
		return show(cmd, s.provider, s.env.Stdout)
	})
}

func show(cmd *cli.Command, p *tocs.Provider, out io.Writer) error {
	if cmd.Bool("json") {
		snap := toc.Snapshot{Books: p.Books(), Orphans: p.GetChildren(p.Orphans())}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("unable to serialize tables of contents: %w", err)
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}
	_, err := render(p, renderOptions{details: cmd.Bool("details")}).WriteTo(out)
	return err
}

// loadSnapshot reads snapshot in its wire form, as written by "show --json"
// or stored in debug report.
func loadSnapshot(path string) (*tocs.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read snapshot: %w", err)
	}
	var snap toc.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unable to decode snapshot '%s': %w", path, err)
	}
	p := tocs.NewProvider()
	p.Apply(snap)
	return p, nil
}

// Filter switches tree into filter mode and prints what becomes visible.
func Filter(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "filter", func(s *session) error {
		view := newTextView(s.provider)
		if err := tocs.NewRevealController(view, s.provider, s.log).Toggle(ctx); err != nil {
			return fmt.Errorf("unable to reveal tree: %w", err)
		}
		s.log.Debug("Tree revealed", zap.Int("nodes", len(view.revealed)), zap.Bool("filter", s.provider.FilterMode()))
		_, err := render(s.provider, renderOptions{view: view, details: cmd.Bool("details")}).WriteTo(s.env.Stdout)
		return err
	})
}

// Move puts node right after target (or into it when target is a book or
// subbook).
func Move(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "move", func(s *session) error {
		nodes, err := s.nodes(cmd, 0, 2)
		if err != nil {
			return err
		}
		h := s.handler(newLinePrompter(s.env.Stdin, s.env.Stdout))
		return s.modify(ctx, "move", func() error { return h.MoveNode(ctx, nodes[0], nodes[1]) })
	})
}

// Drop emulates drag and drop of node onto target, dropping onto orphans
// removes node from its book.
func Drop(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "drop", func(s *session) error {
		nodes, err := s.nodes(cmd, 0, 2)
		if err != nil {
			return err
		}
		h := s.handler(newLinePrompter(s.env.Stdin, s.env.Stdout))
		return s.modify(ctx, "drop", func() error {
			transfer := tocs.NewMapTransfer()
			h.HandleDrag(nodes[:1], transfer)
			return h.HandleDrop(ctx, nodes[1], transfer)
		})
	})
}

// Remove takes node out of its book, files are kept.
func Remove(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "remove", func(s *session) error {
		nodes, err := s.nodes(cmd, 0, 1)
		if err != nil {
			return err
		}
		h := s.handler(newLinePrompter(s.env.Stdin, s.env.Stdout))
		return s.modify(ctx, "remove", func() error { return h.RemoveNode(ctx, nodes[0]) })
	})
}

// Rename changes title of a subbook, page or ancillary.
func Rename(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "rename", func(s *session) error {
		nodes, err := s.nodes(cmd, 0, 1)
		if err != nil {
			return err
		}
		if !toc.IsClientTocNode(nodes[0]) {
			return fmt.Errorf("unable to rename %s, only subbooks, pages and ancillaries have editable titles", nodes[0].Kind())
		}
		h := s.handler(prompterFor(cmd.String("title"), cmd.IsSet("title"), s.env.Stdin, s.env.Stdout))
		return s.modify(ctx, "rename", func() error { return h.RenameNode(ctx, nodes[0]) })
	})
}

// Add creates new page, subbook or ancillary next to (or inside of)
// reference node.
func Add(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "add", func(s *session) error {
		if cmd.Args().Len() == 0 {
			return errors.New("no node kind has been specified")
		}
		kind, err := parseKind(cmd.Args().Get(0))
		if err != nil {
			return err
		}
		nodes, err := s.nodes(cmd, 1, 1)
		if err != nil {
			return err
		}
		if _, ok := nodes[0].(*toc.OrphanCollection); ok {
			return errors.New("unable to add node to orphans, select a book or a node inside of it")
		}
		slug := cmd.String("slug")
		if len(slug) > 0 && kind != toc.KindSubbook {
			s.log.Warn("Slug is only used for subbooks, ignoring", zap.String("slug", slug))
			slug = ""
		}
		h := s.handler(prompterFor(cmd.String("title"), cmd.IsSet("title"), s.env.Stdin, s.env.Stdout))
		return s.modify(ctx, "add", func() error { return h.AddNode(ctx, kind, nodes[0], slug) })
	})
}

// Apply sends modification request in its wire form to the workspace.
// Request is read from file or, when absent or "-", from standard input.
// Empty workspace URI addresses current workspace.
func Apply(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, "apply", func(s *session) error {
		if cmd.Args().Len() > 1 {
			s.log.Warn("Malformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
		}

		var (
			data []byte
			err  error
		)
		if src := cmd.Args().Get(0); len(src) > 0 && src != "-" {
			data, err = os.ReadFile(src)
		} else {
			data, err = io.ReadAll(s.env.Stdin)
		}
		if err != nil {
			return fmt.Errorf("unable to read modification: %w", err)
		}

		m, err := toc.DecodeModification(data)
		if err != nil {
			return fmt.Errorf("unable to decode modification: %w", err)
		}
		if len(m.WorkspaceURI) == 0 {
			m.WorkspaceURI = s.env.WorkspaceURI()
		}
		return s.modify(ctx, "apply "+m.Event.EventType().String(), func() error {
			return s.sender.SendRequest(ctx, m)
		})
	})
}
