package cliinput

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

var errInterrupted = errors.New("input interrupted")

// Prompter reads single lines of interactive input with an optional deadline.
//
// A single goroutine, started on first use, reads the input one byte at a
// time and hands each byte over a channel. A read that times out leaves that
// goroutine and any partially typed line in place for the next call, so no
// input is lost between prompts. Close stops the goroutine.
type Prompter struct {
	in  io.Reader
	out io.Writer

	start     sync.Once
	closeOnce sync.Once
	stdin     *readline.CancelableStdin
	input     chan inputByte
	closed    chan struct{}

	// mu serialises ReadLine calls and guards the fields below.
	mu      sync.Mutex
	pending []byte
	err     error
}

type inputByte struct {
	b   byte
	err error
}

// NewPrompter returns a Prompter reading from in and echoing prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:     in,
		out:    out,
		input:  make(chan inputByte),
		closed: make(chan struct{}),
	}
}

// Close stops the background reader. Later calls to ReadLine return io.EOF.
func (p *Prompter) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		// Waits for a concurrent start and prevents a later one.
		p.start.Do(func() {})
		if p.stdin != nil {
			_ = p.stdin.Close()
		}
	})
	return nil
}

func (p *Prompter) startReader() {
	p.start.Do(func() {
		p.stdin = readline.NewCancelableStdin(p.in)
		go p.pump()
	})
}

// pump forwards bytes from the input until it fails or the prompter closes.
// A byte read while no prompt is waiting is held until the next ReadLine.
func (p *Prompter) pump() {
	buf := make([]byte, 1)
	for {
		n, err := p.stdin.Read(buf)
		if n == 1 {
			select {
			case p.input <- inputByte{b: buf[0]}:
			case <-p.closed:
				return
			}
		}
		if err != nil {
			select {
			case p.input <- inputByte{err: err}:
			case <-p.closed:
			}
			return
		}
	}
}

// ReadLine writes prompt and reads one line. A timeout of zero waits until
// input arrives or ctx is done. When the deadline passes it returns an input
// timeout error. When mask is set and input is a terminal, typed characters
// are not echoed and the terminal state is restored on every return path.
func (p *Prompter) ReadLine(ctx context.Context, prompt string, mask bool, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	raw := false
	if mask {
		if fd, ok := p.terminalFD(); ok {
			state, err := term.MakeRaw(fd)
			if err != nil {
				return "", fmt.Errorf("failed to disable terminal echo: %w", err)
			}
			defer func() {
				_ = term.Restore(fd, state)
				fmt.Fprintln(p.out)
			}()
			raw = true
		}
	}

	line, err := p.readLine(ctx, raw)
	if err != nil && ctx.Err() != nil {
		if !raw {
			fmt.Fprintln(p.out)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", engine.NewInputTimeoutError(
				fmt.Sprintf("no input received within %s", timeout), ctx.Err(),
			).WithCode(engine.ErrCodeTimeout)
		}
		return "", ctx.Err()
	}
	return line, err
}

// readLine collects bytes from the reader goroutine until a line is complete.
// On cancellation the bytes gathered so far are kept for the next call.
// Callers hold p.mu.
func (p *Prompter) readLine(ctx context.Context, raw bool) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	select {
	case <-p.closed:
		return "", io.EOF
	default:
	}
	p.startReader()

	lb := &lineBuffer{raw: raw, buf: p.pending}
	p.pending = nil

	for {
		select {
		case <-ctx.Done():
			p.pending = lb.buf
			return "", ctx.Err()
		case <-p.closed:
			return "", io.EOF
		case in := <-p.input:
			if in.err != nil {
				p.err = in.err
				if errors.Is(in.err, io.EOF) && len(lb.buf) > 0 {
					return string(lb.buf), nil
				}
				return "", in.err
			}
			done, err := lb.feed(in.b)
			if err != nil {
				return "", err
			}
			if done {
				return string(lb.buf), nil
			}
		}
	}
}

func (p *Prompter) terminalFD() (int, bool) {
	f, ok := p.in.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// lineBuffer accumulates one line. In raw mode it handles carriage return,
// backspace and Ctrl-C itself because the terminal no longer does.
type lineBuffer struct {
	raw bool
	buf []byte
}

// feed adds c and reports whether the line is complete.
func (l *lineBuffer) feed(c byte) (bool, error) {
	switch {
	case c == '\n':
		return true, nil
	case c == '\r':
		return l.raw, nil
	case l.raw && c == 0x03:
		l.buf = nil
		return false, errInterrupted
	case l.raw && c == 0x04 && len(l.buf) == 0:
		return false, io.EOF
	case l.raw && (c == 0x7f || c == 0x08):
		if len(l.buf) > 0 {
			_, size := utf8.DecodeLastRune(l.buf)
			l.buf = l.buf[:len(l.buf)-size]
		}
	default:
		l.buf = append(l.buf, c)
	}
	return false, nil
}
