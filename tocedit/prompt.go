package tocedit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"poet/tocs"
)

// linePrompter reads titles from input one line at a time. When input is a
// terminal user is prompted and asked again after invalid input, otherwise
// invalid input fails the command. End of input cancels the prompt.
type linePrompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newLinePrompter(in io.Reader, out io.Writer) *linePrompter {
	p := &linePrompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok {
		p.interactive = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *linePrompter) InputBox(ctx context.Context, opts tocs.InputBoxOptions) (string, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if p.interactive {
			if len(opts.Value) > 0 {
				fmt.Fprintf(p.out, "%s [%s]: ", opts.Prompt, opts.Value)
			} else {
				fmt.Fprintf(p.out, "%s: ", opts.Prompt)
			}
		}

		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, fmt.Errorf("unable to read input: %w", err)
		}
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return "", false, nil
		}

		value := strings.TrimRight(line, "\r\n")
		if len(value) == 0 {
			value = opts.Value
		}
		if opts.ValidateInput != nil {
			if msg := opts.ValidateInput(value); len(msg) > 0 {
				if !p.interactive {
					return "", false, errors.New(msg)
				}
				fmt.Fprintln(p.out, msg)
				continue
			}
		}
		return value, true, nil
	}
}

// fixedPrompter answers every prompt with value given on command line.
type fixedPrompter string

func (f fixedPrompter) InputBox(ctx context.Context, opts tocs.InputBoxOptions) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if opts.ValidateInput != nil {
		if msg := opts.ValidateInput(string(f)); len(msg) > 0 {
			return "", false, errors.New(msg)
		}
	}
	return string(f), true, nil
}

// prompterFor prefers title flag over asking.
func prompterFor(title string, set bool, in io.Reader, out io.Writer) tocs.Prompter {
	if set {
		return fixedPrompter(title)
	}
	return newLinePrompter(in, out)
}
