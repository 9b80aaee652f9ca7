package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Prompter asks a human a question and returns the answer.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// AskUser blocks on a human answer to the job description.
type AskUser struct {
	prompter Prompter
}

// NewAskUser creates an ask_user strategy.
func NewAskUser(p Prompter) *AskUser {
	return &AskUser{prompter: p}
}

func (a *AskUser) Execute(ctx context.Context, job task.Job) (string, error) {
	return a.prompter.Ask(ctx, job.Description)
}

// LinePrompter writes the question to out and reads one line from in. It is
// used when no terminal is attached, so answers can be piped in.
//
// A single goroutine reads in for the lifetime of the prompter and hands each
// line to whichever Ask is waiting. A cancelled Ask leaves its pending read
// to the next call, so the prompter stays usable after a cancellation.
type LinePrompter struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	prefix string

	start sync.Once
	lines chan lineResult
}

// NewLinePrompter creates a LinePrompter.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{
		in:     bufio.NewReader(in),
		out:    out,
		prefix: "? ",
		lines:  make(chan lineResult),
	}
}

type lineResult struct {
	line string
	err  error
}

// readLoop delivers lines until the first read error, then closes lines.
func (p *LinePrompter) readLoop() {
	defer close(p.lines)
	for {
		line, err := p.in.ReadString('\n')
		p.lines <- lineResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// Ask returns the line without its terminator. It gives up when ctx is done.
func (p *LinePrompter) Ask(ctx context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.out, "%s%s\n> ", p.prefix, question); err != nil {
		return "", err
	}
	p.start.Do(func() { go p.readLoop() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-p.lines:
		if !ok {
			return "", fmt.Errorf("read answer: %w", io.EOF)
		}
		if r.err != nil && !(r.err == io.EOF && r.line != "") {
			return "", fmt.Errorf("read answer: %w", r.err)
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}
