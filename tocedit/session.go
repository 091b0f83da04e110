// Package tocedit implements command line actions which inspect and edit
// book tables of contents of a workspace.
package tocedit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"poet/bundle"
	"poet/state"
	"poet/toc"
	"poet/tocs"
	"poet/tokenstore"
)

// session ties a loaded workspace to tree provider and event handler for
// the duration of a single command.
type session struct {
	env      *state.LocalEnv
	log      *zap.Logger
	bundle   *bundle.Bundle
	store    *tokenstore.Store
	provider *tocs.Provider
	sender   tocs.Sender
}

func openSession(ctx context.Context, cmd *cli.Command, name string) (s *session, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env := state.EnvFromContext(ctx)
	s = &session{env: env, log: env.Log.Named(name)}

	root := cmd.String("workspace")
	if len(root) == 0 {
		if root, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if root, err = filepath.Abs(root); err != nil {
		return nil, err
	}
	env.Workspace = root
	env.DryRun = cmd.Bool("dry-run")

	var options []bundle.Option
	// dry run leaves workspace untouched, token database included
	if env.Cfg.Tokens.Persist && !env.DryRun {
		dbPath := env.Cfg.Workspace.Resolve(root, env.Cfg.Tokens.Database)
		if s.store, err = tokenstore.Open(dbPath, s.log); err != nil {
			return nil, err
		}
		options = append(options, bundle.WithTokenStore(s.store))
	}

	if s.bundle, err = bundle.Open(root, env.Cfg.Workspace, s.log, options...); err != nil {
		return nil, multierr.Append(err, s.close())
	}

	s.provider = tocs.NewProvider()
	s.provider.Apply(s.bundle.Snapshot(ctx))
	s.bundle.Subscribe(s.provider.Apply)

	if env.Rpt != nil {
		s.report("snapshots/before.json", s.bundle.Snapshot(ctx))
		s.bundle.Subscribe(func(snap toc.Snapshot) {
			s.report("snapshots/after.json", snap)
		})
	}

	s.sender = s.bundle
	if env.DryRun {
		s.sender = &printingSender{out: env.Stdout}
	}

	s.log.Debug("Workspace opened", zap.String("root", root), zap.Bool("dry-run", env.DryRun),
		zap.Int("books", len(s.provider.Books())), zap.Int("orphans", len(s.provider.GetChildren(s.provider.Orphans()))))
	return s, nil
}

// handler builds event handler asking for titles with prompter.
func (s *session) handler(prompter tocs.Prompter) *tocs.EventHandler {
	return tocs.NewEventHandler(s.provider, s.sender, prompter, s.env.WorkspaceURI(), s.log)
}

func (s *session) report(name string, snap toc.Snapshot) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.log.Warn("Unable to serialize snapshot for report", zap.Error(err))
		return
	}
	s.env.Rpt.StoreData(name, data)
}

func (s *session) close() error {
	if s == nil || s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("unable to close token database: %w", err)
	}
	return nil
}

// printingSender replaces workspace in dry run mode, requests are written
// out in their wire form and never applied.
type printingSender struct {
	out  io.Writer
	sent int
}

func (p *printingSender) SendRequest(ctx context.Context, m toc.Modification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to serialize modification: %w", err)
	}
	if _, err := fmt.Fprintf(p.out, "%s\n", data); err != nil {
		return err
	}
	p.sent++
	return nil
}
