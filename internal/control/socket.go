// Package control drives a storage backend process. High level requests
// are decomposed into operations that run as resumable state machines on
// a stack; the backend's replies advance the operation on top.
//
// A Socket is not safe for concurrent use. Session serializes all access
// through a single goroutine.
package control

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bamsammich/bucketctl/internal/backend"
	"github.com/bamsammich/bucketctl/internal/cache"
	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/protocol"
	"github.com/bamsammich/bucketctl/internal/ratelimit"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
	"github.com/bamsammich/bucketctl/internal/stats"
)

// Backend is a running backend process as seen by the socket.
type Backend interface {
	SendLine(text string) error
	Stop()
}

// Spawner starts a backend whose deliveries carry instance and go to sink.
type Spawner func(instance uint64, sink chan<- backend.Delivery) (Backend, error)

// ProcessSpawner returns a Spawner running executable with args.
func ProcessSpawner(executable string, args ...string) Spawner {
	return func(instance uint64, sink chan<- backend.Delivery) (Backend, error) {
		p, err := backend.Start(backend.Options{
			Executable: executable,
			Args:       args,
			Instance:   instance,
			Sink:       sink,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Server identifies the storage service the backend logs in to.
type Server struct {
	Host string
	User string
	Pass string
	Port int
}

// Format returns host[:port].
func (s Server) Format() string {
	if s.Port == 0 {
		return s.Host
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Identity is the backend-native identifier pair a path resolves to.
type Identity struct {
	BucketID string
	FileID   string
}

// HasFileID reports whether a file id was resolved.
func (i Identity) HasFileID() bool { return i.FileID != "" }

// Result is the outcome of a top-level command.
type Result struct {
	Listing  remote.Listing
	Identity Identity
	Checksum string
	Code     reply.Code
	Op       OpKind
}

// Options configures a Socket.
type Options struct {
	Cache   *cache.Cache
	Limiter *ratelimit.Limiter
	Stats   *stats.Collector
	Events  chan<- event.Event
	Logger  *slog.Logger
	// Spawner defaults to ProcessSpawner(Executable, Args...).
	Spawner    Spawner
	SessionID  string
	Executable string
	Args       []string
}

// Hooks connect a Socket to the goroutine that owns it.
type Hooks struct {
	// Deliveries is handed to spawned backends.
	Deliveries chan<- backend.Delivery
	// Notify receives lock and quota notices from other goroutines. It must
	// not block.
	Notify func(Notice)
	// Finished receives the result of every top-level command.
	Finished func(Result)
}

// Socket is the control socket for one backend process.
type Socket struct {
	cache       *cache.Cache
	limiter     *ratelimit.Limiter
	stats       *stats.Collector
	events      chan<- event.Event
	log         *slog.Logger
	spawner     Spawner
	hooks       Hooks
	proc        Backend
	quotaTimers [2]*time.Timer
	id          string
	lastText    string
	currentPath remote.Path
	stack       []operation
	instance    uint64
	lastCode    reply.Code
	connected   bool
}

// NewSocket creates an idle, disconnected Socket.
func NewSocket(opts Options, hooks Hooks) *Socket {
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.DefaultConfig())
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewCollector()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Spawner == nil {
		opts.Spawner = ProcessSpawner(opts.Executable, opts.Args...)
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	return &Socket{
		cache:   opts.Cache,
		limiter: opts.Limiter,
		stats:   opts.Stats,
		events:  opts.Events,
		log:     opts.Logger.With("session", opts.SessionID),
		spawner: opts.Spawner,
		hooks:   hooks,
		id:      opts.SessionID,
	}
}

// ID returns the session id used in logs and events.
func (s *Socket) ID() string { return s.id }

// Connected reports whether the login sequence completed.
func (s *Socket) Connected() bool { return s.connected }

// Busy reports whether a command is in progress.
func (s *Socket) Busy() bool { return len(s.stack) > 0 }

// CurrentPath returns the directory most recently listed.
func (s *Socket) CurrentPath() remote.Path { return s.currentPath }

// Connect starts the backend and logs in to server.
func (s *Socket) Connect(server Server) reply.Code {
	if s.proc != nil {
		s.log.Warn("connect called on a connected socket")
		return reply.InternalError
	}
	return s.startCommand(newConnectOp(s, server))
}

// List lists path, or subdir relative to it. An empty path means the
// current path.
func (s *Socket) List(path remote.Path, subdir string, flags ListFlags) reply.Code {
	if path.IsEmpty() {
		path = s.currentPath
	}
	if subdir != "" {
		var ok bool
		if path, ok = path.ChangePath(subdir); !ok {
			path = remote.Path{}
		}
	}
	if path.IsEmpty() {
		path = remote.Root()
	}
	return s.startCommand(newListOp(s, path, flags))
}

// FileTransfer uploads or downloads one file. remotePath is the directory
// holding remoteName.
func (s *Socket) FileTransfer(
	localPath string,
	remotePath remote.Path,
	remoteName string,
	download bool,
	settings TransferSettings,
) reply.Code {
	return s.startCommand(newTransferOp(s, localPath, remotePath, remoteName, download, settings))
}

// Resolve maps path and file to backend identifiers.
func (s *Socket) Resolve(
	path remote.Path,
	file string,
	wantBucket, wantFileID, ignoreMissing bool,
) reply.Code {
	return s.startCommand(newResolveOp(s, path, file, wantBucket, wantFileID, ignoreMissing))
}

// Mkdir creates the bucket named by path.
func (s *Socket) Mkdir(path remote.Path) reply.Code {
	return s.startCommand(newMkdirOp(s, path))
}

// RemoveDir removes the bucket named by path, or subdir relative to it.
func (s *Socket) RemoveDir(path remote.Path, subdir string) reply.Code {
	if subdir != "" {
		var ok bool
		if path, ok = path.ChangePath(subdir); !ok {
			path = remote.Path{}
		}
	}
	return s.startCommand(newRmdirOp(s, path))
}

// Delete removes names from the directory path.
func (s *Socket) Delete(path remote.Path, names []string) reply.Code {
	return s.startCommand(newDeleteOp(s, path, names))
}

// Cancel aborts the command in progress. The backend has no in-protocol
// cancel, so the connection is torn down.
func (s *Socket) Cancel() {
	if len(s.stack) == 0 {
		return
	}
	s.log.Info("command canceled")
	s.doClose(reply.Canceled)
}

// Close stops the backend. A command in progress finishes as canceled.
func (s *Socket) Close() {
	if s.proc == nil && len(s.stack) == 0 {
		return
	}
	s.doClose(reply.Canceled)
}

// HandleDelivery processes one item from a backend reader.
func (s *Socket) HandleDelivery(d backend.Delivery) {
	if d.Instance != s.instance || s.proc == nil {
		s.log.Debug("dropping delivery from stale backend",
			"instance", d.Instance, "current", s.instance)
		return
	}

	if d.Terminated {
		if d.Err != nil {
			s.log.Error("backend output error", "error", d.Err)
		} else {
			s.log.Info("backend exited")
		}
		s.doClose(reply.Disconnected)
		return
	}

	s.handleMessage(d.Message)
}

func (s *Socket) handleMessage(msg protocol.Message) {
	switch msg.Kind {
	case protocol.Reply:
		s.log.Debug("response", "text", msg.Text[0])
		s.processReply(reply.OK, msg.Text[0])
	case protocol.Done:
		code := reply.Error
		switch msg.Text[0] {
		case "1":
			code = reply.OK
		case "2":
			code = reply.CriticalError
		}
		s.processReply(code, msg.Text[0])
	case protocol.Error:
		s.log.Error("backend error", "text", msg.Text[0])
	case protocol.Verbose, protocol.Info:
		s.log.Debug("backend message", "kind", msg.Kind, "text", msg.Text[0])
	case protocol.Status:
		s.log.Info(msg.Text[0])
	case protocol.Recv:
		s.stats.RecordActivity(true)
	case protocol.Send:
		s.stats.RecordActivity(false)
	case protocol.ListEntry:
		s.handleListEntry(msg.Text)
	case protocol.UsedQuotaRecv:
		s.requestQuota(ratelimit.Inbound)
	case protocol.UsedQuotaSend:
		s.requestQuota(ratelimit.Outbound)
	case protocol.Transfer:
		s.handleTransfer(msg.Text[0])
	default:
		s.log.Warn("unhandled backend message", "kind", msg.Kind)
	}
}

func (s *Socket) handleListEntry(text [3]string) {
	if len(s.stack) == 0 {
		s.log.Warn("list entry without a command in progress", "name", text[0])
		return
	}
	op, ok := s.top().(*listOp)
	if !ok {
		s.log.Warn("list entry received at improper time", "op", s.top().kind())
		s.advance(reply.InternalError)
		return
	}
	if res := op.parseEntry(text[0], text[1], text[2]); !res.IsWouldBlock() {
		s.advance(res)
	}
}

func (s *Socket) handleTransfer(text string) {
	if len(s.stack) == 0 {
		s.log.Debug("transfer progress without a command", "text", text)
		return
	}
	if _, ok := s.top().(*transferOp); !ok {
		s.log.Debug("transfer progress outside a transfer", "op", s.top().kind())
		return
	}
	delta, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		s.log.Warn("malformed transfer progress", "text", text)
		s.advance(reply.InternalError)
		return
	}
	if s.stats.Update(delta) {
		s.log.Debug("transfer made progress")
	}
	snap := s.stats.Snapshot()
	s.emit(event.Event{Type: event.TransferProgress, Size: snap.BytesTransferred})
}

// processReply routes a backend reply to the operation on top.
func (s *Socket) processReply(code reply.Code, text string) {
	if len(s.stack) == 0 {
		s.log.Warn("reply without a command in progress", "text", text)
		return
	}
	s.lastCode = code
	s.lastText = text
	s.advance(s.top().parseResponse())
}

// sendCommand writes cmd to the backend. display replaces cmd in logs.
func (s *Socket) sendCommand(cmd, display string) reply.Code {
	if display == "" {
		display = cmd
	}
	s.log.Debug("command", "text", display)

	if s.proc == nil {
		s.log.Error("not connected")
		return reply.Disconnected
	}
	if err := s.proc.SendLine(cmd); err != nil {
		if errors.Is(err, protocol.ErrLineBreak) {
			s.log.Warn("refusing to send command containing a line break")
			return reply.InternalError
		}
		s.log.Error("write to backend failed", "error", err)
		return reply.Disconnected
	}
	return reply.WouldBlock
}

// spawn starts a fresh backend instance.
func (s *Socket) spawn() error {
	s.instance++
	proc, err := s.spawner(s.instance, s.hooks.Deliveries)
	if err != nil {
		return fmt.Errorf("spawn backend: %w", err)
	}
	s.proc = proc
	return nil
}

// doClose tears down the backend and abandons every operation. Deliveries
// and notices addressed to the old instance are ignored from here on.
func (s *Socket) doClose(code reply.Code) {
	s.instance++
	s.stopQuotaTimers()

	if s.proc != nil {
		s.proc.Stop()
		s.proc = nil
	}

	wasConnected := s.connected
	s.connected = false

	ops := s.stack
	s.stack = nil
	code = code.WithDisconnected()
	for i := len(ops) - 1; i >= 0; i-- {
		ops[i].reset(code)
	}

	if wasConnected {
		s.log.Info("disconnected")
		s.emit(event.Event{Type: event.Disconnected})
	}
	if len(ops) > 0 {
		s.finish(code, ops[0])
	}
}

func (s *Socket) finish(code reply.Code, op operation) {
	r := Result{Code: code, Op: op.kind()}
	if f, ok := op.(resultFiller); ok {
		f.fillResult(&r)
	}

	if op.kind() == OpConnect && code.IsOK() {
		s.connected = true
		s.emit(event.Event{Type: event.Connected})
	}

	if code.IsOK() {
		s.log.Debug("command finished", "op", op.kind())
	} else {
		s.log.Debug("command failed", "op", op.kind(), "code", code)
	}

	if s.hooks.Finished != nil {
		s.hooks.Finished(r)
	}
}

func (s *Socket) emit(ev event.Event) {
	if s.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.Session = s.id
	select {
	case s.events <- ev:
	default:
		s.log.Debug("event dropped", "type", ev.Type)
	}
}
