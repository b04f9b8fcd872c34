// Package backend runs the storage backend helper process and turns its
// stdout into protocol messages.
package backend

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/bamsammich/bucketctl/internal/protocol"
)

// Delivery is one item produced by a Process reader. Terminated marks the
// last delivery of an instance; Err is nil when stdout closed cleanly.
type Delivery struct {
	Err        error
	Message    protocol.Message
	Instance   uint64
	Terminated bool
}

// Options configures Start.
type Options struct {
	// Sink receives every delivery in arrival order.
	Sink       chan<- Delivery
	Executable string
	Args       []string
	// Env is appended to the current environment.
	Env      []string
	Instance uint64
}

// Process is a running backend.
type Process struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	done       chan struct{}
	readerDone chan struct{}
	stderrWg   sync.WaitGroup
	instance   uint64
	writeMu    sync.Mutex
	stopOnce   sync.Once
}

// Start spawns the backend and starts reading its output.
func Start(opts Options) (*Process, error) {
	if opts.Sink == nil {
		return nil, errors.New("backend: nil delivery sink")
	}

	cmd := exec.Command(opts.Executable, opts.Args...) //nolint:gosec // executable comes from user config
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{}
	setProcessGroup(cmd.SysProcAttr)
	setPdeathsig(cmd.SysProcAttr)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start backend %s: %w", opts.Executable, err)
	}

	slog.Debug("started backend", "pid", cmd.Process.Pid, "instance", opts.Instance)

	p := &Process{
		cmd:        cmd,
		stdin:      stdin,
		instance:   opts.Instance,
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}

	p.stderrWg.Add(1)
	go p.logStderr(stderr)
	go p.readLoop(stdout, opts.Sink)

	return p, nil
}

// Instance returns the instance number the process was started with.
func (p *Process) Instance() uint64 { return p.instance }

// Pid returns the OS process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// SendLine writes one command line. Text containing a line break is
// rejected before anything reaches the process.
func (p *Process) SendLine(text string) error {
	if err := protocol.CheckLine(text); err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.done:
		return errors.New("backend stopped")
	default:
	}

	if _, err := io.WriteString(p.stdin, text+"\n"); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// Stop kills the backend and waits for its reader to exit. No delivery
// is produced after Stop returns. Stop is idempotent.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)

		p.writeMu.Lock()
		p.stdin.Close()
		p.writeMu.Unlock()

		if err := killProcess(p.cmd); err != nil {
			slog.Debug("kill backend", "pid", p.cmd.Process.Pid, "error", err)
		}

		<-p.readerDone
		p.stderrWg.Wait()

		if err := p.cmd.Wait(); err != nil {
			slog.Debug("backend exited", "pid", p.cmd.Process.Pid, "error", err)
		}
	})
}

func (p *Process) readLoop(stdout io.Reader, sink chan<- Delivery) {
	defer close(p.readerDone)

	dec := protocol.NewDecoder(stdout)
	for {
		msg, err := dec.Decode()
		if err != nil {
			d := Delivery{Instance: p.instance, Terminated: true}
			if !errors.Is(err, io.EOF) {
				d.Err = err
			}
			p.deliver(sink, d)
			return
		}
		if !p.deliver(sink, Delivery{Instance: p.instance, Message: msg}) {
			return
		}
	}
}

// deliver hands d to sink unless the process is being stopped.
func (p *Process) deliver(sink chan<- Delivery, d Delivery) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case sink <- d:
		return true
	case <-p.done:
		return false
	}
}

func (p *Process) logStderr(r io.Reader) {
	defer p.stderrWg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		slog.Debug("backend stderr", "instance", p.instance, "line", scanner.Text())
	}
}
