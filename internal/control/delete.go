package control

import (
	"fmt"

	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

const (
	deleteNext = iota
	deleteResolve
	deleteRemove
)

type deleteOp struct {
	opBase
	path   remote.Path
	names  []string
	idx    int
	failed int
}

func newDeleteOp(s *Socket, path remote.Path, names []string) *deleteOp {
	return &deleteOp{opBase: opBase{s: s}, path: path, names: names}
}

func (*deleteOp) kind() OpKind { return OpDelete }

func (o *deleteOp) send() reply.Code {
	if o.state != deleteNext {
		return o.unexpected(OpDelete, "send")
	}
	if len(o.names) == 0 {
		o.s.log.Error("delete called without file names", "path", o.path)
		return reply.CriticalError
	}
	if o.idx >= len(o.names) {
		return o.done()
	}

	o.state = deleteResolve
	o.s.push(newResolveOp(o.s, o.path, o.names[o.idx], true, true, true))
	return reply.Continue
}

func (o *deleteOp) subcommandResult(code reply.Code, child operation) reply.Code {
	r, ok := child.(*resolveOp)
	if o.state != deleteResolve || !ok {
		return o.unexpected(OpDelete, "subcommandResult")
	}

	if !code.IsOK() {
		return code
	}
	if !r.identity.HasFileID() {
		o.s.log.Error("cannot delete file, not found", "path", o.path.FormatFilename(o.names[o.idx]))
		return o.skip()
	}

	o.state = deleteRemove
	return o.s.sendCommand(fmt.Sprintf("rm %s %s", r.identity.BucketID, r.identity.FileID), "")
}

func (o *deleteOp) parseResponse() reply.Code {
	if o.state != deleteRemove {
		return o.unexpected(OpDelete, "parseResponse")
	}

	name := o.names[o.idx]
	switch o.s.lastCode {
	case reply.OK:
	case reply.Error:
		o.s.log.Error("delete failed", "path", o.path.FormatFilename(name))
		return o.skip()
	default:
		return o.s.lastCode
	}

	o.s.cache.InvalidateEntry(o.path, name)
	o.s.emit(event.Event{Type: event.FileDeleted, Path: o.path.FormatFilename(name)})
	o.idx++
	o.state = deleteNext
	return reply.Continue
}

// skip counts the current name as failed and moves on.
func (o *deleteOp) skip() reply.Code {
	o.failed++
	o.idx++
	o.state = deleteNext
	return reply.Continue
}

func (o *deleteOp) done() reply.Code {
	o.s.emit(event.Event{Type: event.ListingUpdated, Path: o.path.String()})
	if o.failed > 0 {
		o.s.log.Warn("some files could not be deleted", "failed", o.failed, "total", len(o.names))
		return reply.Error
	}
	return reply.OK
}
