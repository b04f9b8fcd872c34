package control

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bamsammich/bucketctl/internal/backend"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

// ErrSessionClosed is returned by Session methods once Run has returned.
var ErrSessionClosed = errors.New("session closed")

const deliveryBuffer = 64

type request struct {
	start  func(*Socket) reply.Code
	result chan Result
	id     uint64
}

// Session owns a Socket and serializes every access to it on the
// goroutine running Run. Its methods block until the command finishes and
// may be called from any goroutine.
type Session struct {
	socket     *Socket
	requests   chan request
	cancels    chan uint64
	deliveries chan backend.Delivery
	signal     chan struct{}
	done       chan struct{}
	pending    *request
	notices    []Notice
	nextID     atomic.Uint64
	noticeMu   sync.Mutex
}

// NewSession creates a Session. Call Run before issuing commands.
func NewSession(opts Options) *Session {
	s := &Session{
		requests:   make(chan request),
		cancels:    make(chan uint64),
		deliveries: make(chan backend.Delivery, deliveryBuffer),
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	s.socket = NewSocket(opts, Hooks{
		Deliveries: s.deliveries,
		Notify:     s.notify,
		Finished:   s.finished,
	})
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.socket.ID() }

// Run processes backend output, notices and commands until ctx is done.
// The backend is stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.socket.Close()
			return ctx.Err()
		case d := <-s.deliveries:
			s.socket.HandleDelivery(d)
		case <-s.signal:
			for _, n := range s.drainNotices() {
				s.socket.HandleNotice(n)
			}
		case req := <-s.requests:
			s.start(req)
		case id := <-s.cancels:
			if s.pending != nil && s.pending.id == id {
				s.socket.Cancel()
			}
		}
	}
}

func (s *Session) start(req request) {
	if s.pending != nil {
		req.result <- Result{Code: reply.InternalError}
		return
	}

	s.pending = &req
	code := req.start(s.socket)
	// A command rejected before it was queued never reaches Finished.
	if code.IsFailure() && s.pending == &req {
		s.pending = nil
		req.result <- Result{Code: code}
	}
}

func (s *Session) finished(r Result) {
	if s.pending == nil {
		return
	}
	s.pending.result <- r
	s.pending = nil
}

func (s *Session) notify(n Notice) {
	s.noticeMu.Lock()
	s.notices = append(s.notices, n)
	s.noticeMu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Session) drainNotices() []Notice {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	n := s.notices
	s.notices = nil
	return n
}

// submit runs start on the session goroutine and waits for the result.
// Canceling ctx cancels the command, which tears the connection down.
func (s *Session) submit(ctx context.Context, start func(*Socket) reply.Code) (Result, error) {
	req := request{
		id:     s.nextID.Add(1),
		start:  start,
		result: make(chan Result, 1),
	}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.done:
		return Result{}, ErrSessionClosed
	}

	select {
	case r := <-req.result:
		return r, r.Code.Err()
	case <-ctx.Done():
		select {
		case s.cancels <- req.id:
		case <-s.done:
		}
		return s.await(req)
	case <-s.done:
		return s.await(req)
	}
}

// await collects a result that is delivered while the command is being
// torn down.
func (s *Session) await(req request) (Result, error) {
	select {
	case r := <-req.result:
		return r, r.Code.Err()
	case <-s.done:
	}
	select {
	case r := <-req.result:
		return r, r.Code.Err()
	default:
		return Result{}, ErrSessionClosed
	}
}

// Connect starts the backend and logs in.
func (s *Session) Connect(ctx context.Context, server Server) error {
	_, err := s.submit(ctx, func(sock *Socket) reply.Code {
		return sock.Connect(server)
	})
	return err
}

// List returns the listing of path, or subdir relative to it.
func (s *Session) List(ctx context.Context, path remote.Path, subdir string, flags ListFlags) (remote.Listing, error) {
	r, err := s.submit(ctx, func(sock *Socket) reply.Code {
		return sock.List(path, subdir, flags)
	})
	return r.Listing, err
}

// Transfer uploads or downloads a single file.
func (s *Session) Transfer(
	ctx context.Context,
	local string,
	remotePath remote.Path,
	remoteName string,
	download bool,
	settings TransferSettings,
) (Result, error) {
	return s.submit(ctx, func(sock *Socket) reply.Code {
		return sock.FileTransfer(local, remotePath, remoteName, download, settings)
	})
}

// Resolve maps path and file to backend identifiers.
func (s *Session) Resolve(
	ctx context.Context,
	path remote.Path,
	file string,
	wantBucket, wantFileID, ignoreMissing bool,
) (Identity, error) {
	r, err := s.submit(ctx, func(sock *Socket) reply.Code {
		return sock.Resolve(path, file, wantBucket, wantFileID, ignoreMissing)
	})
	return r.Identity, err
}

// Mkdir creates a bucket.
func (s *Session) Mkdir(ctx context.Context, path remote.Path) error {
	_, err := s.submit(ctx, func(sock *Socket) reply.Code {
		return sock.Mkdir(path)
	})
	return err
}

// RemoveDir removes a bucket.
func (s *Session) RemoveDir(ctx context.Context, path remote.Path, subdir string) error {
	_, err := s.submit(ctx, func(sock *Socket) reply.Code {
		return sock.RemoveDir(path, subdir)
	})
	return err
}

// Delete removes files from a bucket.
func (s *Session) Delete(ctx context.Context, path remote.Path, names []string) error {
	_, err := s.submit(ctx, func(sock *Socket) reply.Code {
		return sock.Delete(path, names)
	})
	return err
}
