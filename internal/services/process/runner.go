package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"github.com/sirupsen/logrus"
)

// MaxOutputBytes caps how much of a process's output is kept in memory
const MaxOutputBytes = 100 * 1024 * 1024

// Command describes a process invocation
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration     // 0 means no timeout besides the context
	OnLine  func(line string) // receives stdout and stderr lines as they arrive
}

// String renders the command as a shell-quoted line
func (c Command) String() string {
	return shellescape.QuoteCommand(append([]string{c.Name}, c.Args...))
}

// Result holds the captured output of a finished process
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout and stderr combined
func (r *Result) Output() string {
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// ExitError reports a process that ran but did not succeed
type ExitError struct {
	Command  string
	Result   *Result
	TimedOut bool
	Err      error
}

func (e *ExitError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s exited with code %d: %v", e.Command, e.Result.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Runner spawns external processes
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	logger *logrus.Logger
}

// NewExecRunner creates a new process runner
func NewExecRunner(logger *logrus.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run starts the command and waits for it. The child is killed when the
// timeout or the context expires.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	r.logger.WithField("command", cmd.String()).Debug("Running command")

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	stdoutPipe, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderrPipe, err := c.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	var stdout, stderr limitedBuffer
	var mu sync.Mutex
	onLine := func(line string) {
		if cmd.OnLine == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		cmd.OnLine(line)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, &stdout, onLine)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, &stderr, onLine)
	}()
	wg.Wait()

	waitErr := c.Wait()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: c.ProcessState.ExitCode(),
	}

	if waitErr != nil {
		exitErr := &ExitError{Command: cmd.Name, Result: result, Err: waitErr}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			exitErr.TimedOut = true
		}
		return result, exitErr
	}

	return result, nil
}

// scanLines copies r into buf and forwards each line
func scanLines(r io.Reader, buf *limitedBuffer, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanProgressLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		buf.WriteLine(line)
		onLine(line)
	}
	// Drain whatever the scanner could not handle so the child never blocks
	_, _ = io.Copy(io.Discard, r)
}

// scanProgressLines splits on \n and on the \r used by progress bars
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, bytes.TrimSpace(data[:i]), nil
	}
	if atEOF {
		return len(data), bytes.TrimSpace(data), nil
	}
	return 0, nil, nil
}

// limitedBuffer keeps at most MaxOutputBytes of output
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) WriteLine(line string) {
	if b.buf.Len()+len(line)+1 > MaxOutputBytes {
		return
	}
	b.buf.WriteString(line)
	b.buf.WriteByte('\n')
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
