package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

const stderrPrefix = "[stderr] "

// Spec is what Spawn executes.
type Spec struct {
	Argv []string
	// Display is the human-readable form of the command, used in errors and logs.
	Display string
	Dir     string
	Env     []string
}

// ShellSpec runs command through a POSIX shell. This is deliberately a shell
// injection surface: the command is user-directed and executed locally.
func ShellSpec(command string) Spec {
	return Spec{Argv: []string{"sh", "-c", command}, Display: command}
}

// ArgvSpec runs argv directly without a shell.
func ArgvSpec(argv []string) Spec {
	return Spec{Argv: argv, Display: strings.Join(argv, " ")}
}

// Handlers receive the output and the exit of a spawned process. Output is
// called from one goroutine per stream; Exit is called exactly once, after
// the last Output call.
type Handlers struct {
	Output func(stream OutputStream, text string)
	Exit   func(succeeded bool, err error)
}

// Process is a running child started by Spawn.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu        sync.Mutex
	succeeded bool
	err       error
	killed    bool
}

// Spawn starts spec and streams its stdout and stderr to h. No timeout is
// applied; cancel ctx or call Kill to stop the process early.
func Spawn(ctx context.Context, spec Spec, h Handlers) (*Process, error) {
	if len(spec.Argv) == 0 || strings.TrimSpace(spec.Argv[0]) == "" {
		return nil, fmt.Errorf("command is required")
	}
	if spec.Display == "" {
		spec.Display = strings.Join(spec.Argv, " ")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1", "PYTHONIOENCODING=UTF-8")
	cmd.Env = append(cmd.Env, spec.Env...)
	setProcessGroup(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("setup stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Argv[0], err)
	}

	p := &Process{cmd: cmd, done: make(chan struct{})}

	var tailMu sync.Mutex
	var errTail strings.Builder
	read := func(stream OutputStream, r io.Reader) error {
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			text := scanner.Text()
			if stream == StreamStderr {
				tailMu.Lock()
				appendLimited(&errTail, text)
				tailMu.Unlock()
			}
			if h.Output != nil {
				h.Output(stream, text)
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("read %s: %w", stream, err)
		}
		return nil
	}

	var g errgroup.Group
	g.Go(func() error { return read(StreamStdout, stdoutPipe) })
	g.Go(func() error { return read(StreamStderr, stderrPipe) })

	go func() {
		readErr := g.Wait()
		waitErr := cmd.Wait()

		p.mu.Lock()
		switch {
		case waitErr != nil:
			p.err = fmt.Errorf("command failed: %w\n%s", waitErr, strings.TrimSpace(errTail.String()))
			if p.killed {
				p.err = fmt.Errorf("command killed: %w", waitErr)
			}
		case readErr != nil:
			p.err = readErr
		}
		p.succeeded = waitErr == nil
		succeeded, exitErr := p.succeeded, p.err
		p.mu.Unlock()

		if h.Exit != nil {
			h.Exit(succeeded, exitErr)
		}
		close(p.done)
	}()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = p.Kill()
			case <-p.done:
			}
		}()
	}
	return p, nil
}

// PID returns the operating-system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed after Exit has been delivered.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exited and its output was delivered.
func (p *Process) Wait() (bool, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.err
}

// Kill terminates the process together with every child it spawned.
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	if err := killProcessGroup(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

// FormatOutput renders a chunk the way it is shown to users: stderr chunks
// carry a distinct prefix.
func FormatOutput(stream OutputStream, text string) string {
	if stream == StreamStderr {
		return stderrPrefix + text
	}
	return text
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(b *strings.Builder, line string) {
	const maxKeep = 8192
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}
