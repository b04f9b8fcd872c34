package control

import (
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

const (
	resolveInit = iota
	resolveWaitBuckets
	resolveID
	resolveWaitList
)

type resolveOp struct {
	opBase
	path          remote.Path
	file          string
	identity      Identity
	wantBucket    bool
	wantFileID    bool
	ignoreMissing bool
	listed        bool
}

func newResolveOp(s *Socket, path remote.Path, file string, wantBucket, wantFileID, ignoreMissing bool) *resolveOp {
	return &resolveOp{
		opBase:        opBase{s: s},
		path:          path,
		file:          file,
		wantBucket:    wantBucket,
		wantFileID:    wantFileID,
		ignoreMissing: ignoreMissing,
	}
}

func (*resolveOp) kind() OpKind { return OpResolve }

func (o *resolveOp) send() reply.Code {
	switch o.state {
	case resolveInit:
		return o.init()
	case resolveID:
		return o.resolveFile()
	}
	return o.unexpected(OpResolve, "send")
}

func (o *resolveOp) init() reply.Code {
	switch {
	case o.path.IsEmpty():
		o.s.log.Warn("resolve called without a path")
		return reply.InternalError
	case o.path.IsRoot():
		if o.wantBucket || o.wantFileID || o.file != "" {
			o.s.log.Warn("root has no bucket", "file", o.file)
			return reply.InternalError
		}
		return reply.OK
	case o.path.SegmentCount() > 1:
		o.s.log.Warn("nested directories are not supported", "path", o.path)
		return reply.NotSupported
	}

	id, res := o.s.lookupBucket(o.path.Segment(0))
	switch res {
	case lookupFound:
		o.identity.BucketID = id
		o.state = resolveID
		return reply.Continue
	case lookupMissing:
		o.s.log.Error("bucket not found", "path", o.path)
		return reply.Error
	}
	o.state = resolveWaitBuckets
	o.s.push(newListOp(o.s, remote.Root(), 0))
	return reply.Continue
}

func (o *resolveOp) resolveFile() reply.Code {
	if !o.wantFileID {
		return reply.OK
	}
	if o.file == "" {
		o.s.log.Warn("file id requested without a file name", "path", o.path)
		return reply.InternalError
	}

	e, res := o.s.lookupFile(o.path, o.file)
	if res == lookupRefresh && !o.listed {
		o.state = resolveWaitList
		o.s.push(newListOp(o.s, o.path, 0))
		return reply.Continue
	}
	if res == lookupFound {
		o.identity.FileID = e.ID
		return reply.OK
	}
	if o.ignoreMissing {
		return reply.OK
	}
	o.s.log.Error("file not found", "path", o.path.FormatFilename(o.file))
	return reply.Error
}

func (o *resolveOp) parseResponse() reply.Code {
	return o.unexpected(OpResolve, "parseResponse")
}

func (o *resolveOp) subcommandResult(code reply.Code, _ operation) reply.Code {
	if !code.IsOK() {
		return code
	}

	switch o.state {
	case resolveWaitBuckets:
		id, res := o.s.lookupBucket(o.path.Segment(0))
		if res != lookupFound {
			o.s.log.Error("bucket not found", "path", o.path)
			return reply.Error
		}
		o.identity.BucketID = id
		o.state = resolveID
		return reply.Continue
	case resolveWaitList:
		o.listed = true
		o.state = resolveID
		return reply.Continue
	}
	return o.unexpected(OpResolve, "subcommandResult")
}

func (o *resolveOp) fillResult(r *Result) {
	r.Identity = o.identity
}
