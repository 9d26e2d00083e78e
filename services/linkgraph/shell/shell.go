// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package shell implements the interactive query prompt.
//
// The shell reads commands from an injected reader, asks for page titles,
// and prints answers in plain sentences. Graphs are loaded by the engine
// on the first command that needs them, so starting the shell is cheap.
//
// Session example:
//
//	What do you want to do? path
//	Start page: Tree
//	Target page: Philosophy
//
//	Reachable in 3 steps:
//	Tree
//	Plant
//	Biology
//	Philosophy
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AleutianAI/wikigraph/pkg/ux"
	"github.com/AleutianAI/wikigraph/services/linkgraph/engine"
	"github.com/AleutianAI/wikigraph/services/linkgraph/graph"
)

// Engine is the query surface the shell needs. *engine.Engine implements it.
type Engine interface {
	Resolve(ctx context.Context, title string) (engine.Page, error)
	Links(ctx context.Context, p engine.Page) ([]engine.Page, error)
	Path(ctx context.Context, from, to engine.Page) (*engine.PathAnswer, error)
	Furthest(ctx context.Context, p engine.Page) (*engine.FurthestAnswer, error)
	Max(ctx context.Context, p engine.Page) (*engine.FurthestAnswer, error)
	Diameter(ctx context.Context, opts ...graph.DiameterOption) (*engine.DiameterAnswer, error)
}

const (
	promptCommand = "What do you want to do?"
	promptRetry   = "Invalid page. Try again:"
	invalidCmd    = "Invalid command. Try 'help' for help."
)

var helpLines = []string{
	"links     - List all the links on a page",
	"path      - Find the shortest path from one page to another",
	"furthest  - Find the page furthest away from a starting point",
	"max       - Find the maximal number of steps needed to get to a page from anywhere",
	"diameter  - Approximate the diameter of the link graph (i.e. how far the furthest two pages are apart)",
	"exit",
}

// Options configures a Shell.
type Options struct {
	// Logger receives errors that are also shown to the user. Nil uses
	// slog.Default().
	Logger *slog.Logger

	// Styler styles output. The zero value prints plain text.
	Styler ux.Styler

	// Diameter options are passed to every diameter estimate.
	Diameter []graph.DiameterOption
}

// Option is a functional option for configuring a Shell.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithStyler sets the output styler.
func WithStyler(s ux.Styler) Option {
	return func(o *Options) {
		o.Styler = s
	}
}

// WithDiameterOptions sets options for diameter estimates.
func WithDiameterOptions(opts ...graph.DiameterOption) Option {
	return func(o *Options) {
		o.Diameter = append(o.Diameter, opts...)
	}
}

// Shell is one interactive session.
//
// Thread Safety:
//
//	Not safe for concurrent use. Run it from one goroutine.
type Shell struct {
	in      *bufio.Reader
	out     io.Writer
	eng     Engine
	options Options
	logger  *slog.Logger
}

// errEndOfInput ends the session when the input is exhausted.
var errEndOfInput = errors.New("end of input")

// New creates a Shell reading from in and writing to out.
func New(in io.Reader, out io.Writer, eng Engine, opts ...Option) *Shell {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{in: bufio.NewReader(in), out: out, eng: eng, options: o, logger: logger}
}

// Run processes commands until exit, end of input or cancellation.
//
// Description:
//
//	Query failures other than unknown pages (e.g. a graph that has not
//	been built) are printed and the session continues.
//
// Outputs:
//
//	error - nil on exit or end of input; ctx.Err() on cancellation; input
//	  read errors.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.prompt(promptCommand)
		cmd, err := s.readLine()
		if errors.Is(err, errEndOfInput) {
			s.println("")
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(cmd) {
		case "":
			continue
		case "exit", "quit", "q":
			return nil
		case "help":
			for _, line := range helpLines {
				s.println(line)
			}
		case "links":
			err = s.links(ctx)
		case "path":
			err = s.path(ctx)
		case "furthest":
			err = s.furthest(ctx)
		case "max":
			err = s.max(ctx)
		case "diameter":
			err = s.diameter(ctx)
		default:
			s.println(invalidCmd)
		}

		switch {
		case errors.Is(err, errEndOfInput):
			s.println("")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.logger.Error("query failed", slog.String("command", cmd), slog.String("error", err.Error()))
			s.println(s.options.Styler.Error("Error: " + err.Error()))
		}
		s.println("")
	}
}

func (s *Shell) links(ctx context.Context) error {
	page, err := s.readPage(ctx, "Page:")
	if err != nil {
		return err
	}
	links, err := s.eng.Links(ctx, page)
	if err != nil {
		return err
	}
	s.println(s.options.Styler.Heading(fmt.Sprintf("%d links:", len(links))))
	for _, l := range links {
		s.println(s.options.Styler.Item(l.Title))
	}
	return nil
}

func (s *Shell) path(ctx context.Context) error {
	start, err := s.readPage(ctx, "Start page:")
	if err != nil {
		return err
	}
	end, err := s.readPage(ctx, "Target page:")
	if err != nil {
		return err
	}
	s.println("")

	ans, err := s.eng.Path(ctx, start, end)
	if err != nil {
		return err
	}
	if !ans.Found {
		s.println(s.options.Styler.Heading("No path found."))
		return nil
	}
	s.println(s.options.Styler.Heading(fmt.Sprintf("Reachable in %d steps:", ans.Hops)))
	for _, p := range ans.Path {
		s.println(s.options.Styler.Item(p.Title))
	}
	return nil
}

func (s *Shell) furthest(ctx context.Context) error {
	start, err := s.readPage(ctx, "Start page:")
	if err != nil {
		return err
	}
	s.println("")

	ans, err := s.eng.Furthest(ctx, start)
	if err != nil {
		return err
	}
	s.println(s.options.Styler.Heading(fmt.Sprintf("The furthest page is '%s' at %d steps.", ans.Node.Title, ans.Distance)))
	return nil
}

func (s *Shell) max(ctx context.Context) error {
	target, err := s.readPage(ctx, "Target page:")
	if err != nil {
		return err
	}
	s.println("")

	ans, err := s.eng.Max(ctx, target)
	if err != nil {
		return err
	}
	s.println(s.options.Styler.Heading(fmt.Sprintf("The maximal number of steps needed is %d from page '%s'.", ans.Distance, ans.Node.Title)))
	return nil
}

func (s *Shell) diameter(ctx context.Context) error {
	ans, err := s.eng.Diameter(ctx, s.options.Diameter...)
	if err != nil {
		return err
	}
	s.println(s.options.Styler.Heading(fmt.Sprintf("The estimated diameter is %d.", ans.Distance)))
	s.println(fmt.Sprintf("when going from '%s'", ans.Start.Title))
	s.println(fmt.Sprintf("to '%s'.", ans.End.Title))
	return nil
}

// readPage prompts until the input names a real page.
func (s *Shell) readPage(ctx context.Context, prompt string) (engine.Page, error) {
	s.prompt(prompt)
	for {
		line, err := s.readLine()
		if err != nil {
			return engine.Page{}, err
		}
		page, err := s.eng.Resolve(ctx, line)
		if err == nil {
			return page, nil
		}

		var nf *engine.PageNotFoundError
		if !errors.As(err, &nf) {
			return engine.Page{}, err
		}
		if len(nf.Suggestions) > 0 {
			s.println(s.options.Styler.Muted("Did you mean: " + strings.Join(nf.Suggestions, ", ") + "?"))
		}
		s.prompt(promptRetry)
	}
}

// readLine returns the next trimmed input line.
func (s *Shell) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			return "", errEndOfInput
		}
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Shell) prompt(text string) {
	fmt.Fprint(s.out, s.options.Styler.Prompt(text)+" ")
}

func (s *Shell) println(text string) {
	fmt.Fprintln(s.out, text)
}
