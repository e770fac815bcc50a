package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/application"
)

// LinePrompter writes a prompt and reads one line of input.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer

	mu sync.Mutex
	// pending is a read abandoned by a cancelled Ask. The next Ask takes
	// its result instead of starting a second read on in.
	pending chan lineResult
}

var _ application.Prompter = (*LinePrompter)(nil)

// NewPrompter creates a prompter over in and out.
func NewPrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

type lineResult struct {
	line string
	err  error
}

// Ask returns the line without its terminator. End of input counts as an
// empty answer. A cancelled ctx abandons the wait, not the read: the line
// is delivered to the next Ask.
func (p *LinePrompter) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)

	ch := p.takeRead()
	select {
	case <-ctx.Done():
		p.mu.Lock()
		p.pending = ch
		p.mu.Unlock()
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", fmt.Errorf("read answer: %w", r.err)
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}

func (p *LinePrompter) takeRead() chan lineResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch := p.pending; ch != nil {
		p.pending = nil
		return ch
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()
	return ch
}
