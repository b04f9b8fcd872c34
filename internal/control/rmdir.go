package control

import (
	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

const (
	rmdirInit = iota
	rmdirResolve
	rmdirRemove
)

type rmdirOp struct {
	opBase
	path   remote.Path
	bucket string
}

func newRmdirOp(s *Socket, path remote.Path) *rmdirOp {
	return &rmdirOp{opBase: opBase{s: s}, path: path}
}

func (*rmdirOp) kind() OpKind { return OpRmdir }

func (o *rmdirOp) send() reply.Code {
	switch o.state {
	case rmdirInit:
		if o.path.SegmentCount() != 1 {
			o.s.log.Error("only top-level directories can be removed", "path", o.path)
			return reply.NotSupported
		}
		o.state = rmdirResolve
		o.s.push(newResolveOp(o.s, o.path, "", true, false, false))
		return reply.Continue
	case rmdirRemove:
		name := o.path.Segment(0)
		o.s.cache.InvalidateEntry(remote.Root(), name)
		if cur := o.s.currentPath; !cur.IsEmpty() && (cur.Equal(o.path) || o.path.IsParentOf(cur)) {
			o.s.currentPath = remote.Path{}
		}
		return o.s.sendCommand("rmbucket "+o.bucket, "")
	}
	return o.unexpected(OpRmdir, "send")
}

func (o *rmdirOp) parseResponse() reply.Code {
	if o.state != rmdirRemove {
		return o.unexpected(OpRmdir, "parseResponse")
	}
	if o.s.lastCode != reply.OK {
		return o.s.lastCode
	}

	o.s.cache.RemoveDir(remote.Root(), o.path.Segment(0))
	o.s.emit(event.Event{Type: event.DirRemoved, Path: o.path.String()})
	o.s.emit(event.Event{Type: event.ListingUpdated, Path: remote.Root().String()})
	return reply.OK
}

func (o *rmdirOp) subcommandResult(code reply.Code, child operation) reply.Code {
	r, ok := child.(*resolveOp)
	if o.state != rmdirResolve || !ok {
		return o.unexpected(OpRmdir, "subcommandResult")
	}
	if !code.IsOK() {
		return code
	}
	o.bucket = r.identity.BucketID
	o.state = rmdirRemove
	return reply.Continue
}
