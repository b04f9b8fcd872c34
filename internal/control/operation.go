package control

import (
	"github.com/bamsammich/bucketctl/internal/ratelimit"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

// OpKind identifies a logical command.
type OpKind int

const (
	OpConnect OpKind = iota + 1
	OpList
	OpResolve
	OpFileTransfer
	OpMkdir
	OpRmdir
	OpDelete
)

var opNames = [...]string{
	OpConnect:      "Connect",
	OpList:         "List",
	OpResolve:      "Resolve",
	OpFileTransfer: "FileTransfer",
	OpMkdir:        "Mkdir",
	OpRmdir:        "Rmdir",
	OpDelete:       "Delete",
}

func (k OpKind) String() string {
	if k > 0 && int(k) < len(opNames) {
		return opNames[k]
	}
	return "Unknown"
}

// operation is one state machine on the stack.
//
// send issues the next backend command (or pushes a child). parseResponse
// consumes the reply to the command sent last; the reply is available in
// Socket.lastCode and Socket.lastText. subcommandResult resumes the
// operation after a child it pushed finished with code. reset is called
// exactly once when the operation leaves the stack.
type operation interface {
	kind() OpKind
	send() reply.Code
	parseResponse() reply.Code
	subcommandResult(code reply.Code, child operation) reply.Code
	reset(code reply.Code)
}

// resultFiller is implemented by operations that hand data to the caller.
type resultFiller interface {
	fillResult(r *Result)
}

// opBase carries what every operation shares.
type opBase struct {
	s     *Socket
	state int
}

func (*opBase) reset(reply.Code) {}

// unexpected logs a call made in a state that does not accept it.
func (o *opBase) unexpected(kind OpKind, call string) reply.Code {
	o.s.log.Warn("operation called at improper time", "op", kind, "call", call, "state", o.state)
	return reply.InternalError
}

func (s *Socket) top() operation {
	return s.stack[len(s.stack)-1]
}

func (s *Socket) push(op operation) {
	s.log.Debug("push operation", "op", op.kind(), "depth", len(s.stack)+1)
	s.stack = append(s.stack, op)
}

func (s *Socket) pop(code reply.Code) operation {
	op := s.top()
	s.stack[len(s.stack)-1] = nil
	s.stack = s.stack[:len(s.stack)-1]
	op.reset(code)
	return op
}

func (s *Socket) startCommand(op operation) reply.Code {
	if len(s.stack) > 0 {
		s.log.Warn("command issued while another is in progress",
			"op", op.kind(), "busy", s.stack[0].kind())
		return reply.InternalError
	}
	s.push(op)
	s.advance(reply.Continue)
	return reply.WouldBlock
}

// advance applies res, the latest code from the operation on top:
// Continue sends again, WouldBlock waits, and a terminal code pops the
// operation and resumes its parent through subcommandResult. Once the
// stack is empty the command is finished.
func (s *Socket) advance(res reply.Code) {
	for len(s.stack) > 0 {
		switch {
		case res.IsWouldBlock():
			return
		case res.IsContinue():
			res = s.top().send()
			continue
		case res.Disconnected:
			s.doClose(res)
			return
		case res.IsFailure() && s.top().kind() == OpConnect:
			s.doClose(res.WithDisconnected())
			return
		}

		child := s.pop(res)
		if len(s.stack) == 0 {
			s.finish(res, child)
			return
		}
		res = s.top().subcommandResult(res, child)
	}
}

// NoticeKind identifies an asynchronous notice for a Socket.
type NoticeKind int

const (
	NoticeLockObtained NoticeKind = iota + 1
	NoticeQuotaAvailable
)

// Notice wakes a Socket from outside its owning goroutine. Notices for a
// torn-down instance are ignored.
type Notice struct {
	op        operation
	Path      remote.Path
	Kind      NoticeKind
	Instance  uint64
	Direction ratelimit.Direction
}

func (s *Socket) post(n Notice) {
	if s.hooks.Notify != nil {
		s.hooks.Notify(n)
	}
}

// HandleNotice processes a notice posted through Hooks.Notify.
func (s *Socket) HandleNotice(n Notice) {
	if n.Instance != s.instance {
		s.log.Debug("dropping stale notice", "kind", n.Kind)
		return
	}

	switch n.Kind {
	case NoticeLockObtained:
		if len(s.stack) == 0 || s.top() != n.op {
			s.log.Debug("lock notice for inactive operation", "path", n.Path)
			return
		}
		s.advance(reply.Continue)
	case NoticeQuotaAvailable:
		s.quotaAvailable(n.Direction)
	}
}

type lookupResult int

const (
	lookupFound lookupResult = iota
	lookupMissing
	lookupRefresh
)

// lookupFile searches the cached listing of dir for name. lookupRefresh
// means the listing is absent, stale, or not yet sure about name.
func (s *Socket) lookupFile(dir remote.Path, name string) (remote.Entry, lookupResult) {
	listing, found, stale := s.cache.Lookup(dir)
	if !found || stale {
		return remote.Entry{}, lookupRefresh
	}
	idx := listing.FindFileCmpCase(name)
	if idx < 0 {
		if listing.HasUnsure() {
			return remote.Entry{}, lookupRefresh
		}
		return remote.Entry{}, lookupMissing
	}
	e := listing.Entries[idx]
	if e.Unsure || e.ID == "" {
		return e, lookupRefresh
	}
	return e, lookupFound
}

// lookupBucket finds the id of a bucket in the cached root listing.
func (s *Socket) lookupBucket(name string) (string, lookupResult) {
	e, res := s.lookupFile(remote.Root(), name)
	return e.ID, res
}
