package control

import (
	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

type mkdirOp struct {
	opBase
	path remote.Path
	sent bool
}

func newMkdirOp(s *Socket, path remote.Path) *mkdirOp {
	return &mkdirOp{opBase: opBase{s: s}, path: path}
}

func (*mkdirOp) kind() OpKind { return OpMkdir }

func (o *mkdirOp) send() reply.Code {
	if o.sent {
		return o.unexpected(OpMkdir, "send")
	}
	if o.path.SegmentCount() != 1 {
		o.s.log.Error("only top-level directories can be created", "path", o.path)
		return reply.NotSupported
	}
	o.sent = true
	return o.s.sendCommand("mkbucket "+o.path.Segment(0), "")
}

func (o *mkdirOp) parseResponse() reply.Code {
	if !o.sent {
		return o.unexpected(OpMkdir, "parseResponse")
	}
	if o.s.lastCode != reply.OK {
		return o.s.lastCode
	}

	o.s.cache.AddEntry(remote.Root(), o.path.Segment(0), true)
	o.s.emit(event.Event{Type: event.DirCreated, Path: o.path.String()})
	o.s.emit(event.Event{Type: event.ListingUpdated, Path: remote.Root().String()})
	return reply.OK
}

func (o *mkdirOp) subcommandResult(reply.Code, operation) reply.Code {
	return o.unexpected(OpMkdir, "subcommandResult")
}
