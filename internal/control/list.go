package control

import (
	"strconv"
	"time"

	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

// ListFlags modify a List command.
type ListFlags int

const (
	// ListRefresh bypasses a fresh cached listing.
	ListRefresh ListFlags = 1 << iota
)

const (
	listInit = iota
	listWaitBuckets
	listWaitLock
	listList
)

type listOp struct {
	opBase
	lockRequested time.Time
	listing       remote.Listing
	path          remote.Path
	bucket        string
	instance      uint64
	flags         ListFlags
	lockAsked     bool
}

func newListOp(s *Socket, path remote.Path, flags ListFlags) *listOp {
	return &listOp{opBase: opBase{s: s}, path: path, flags: flags}
}

func (*listOp) kind() OpKind { return OpList }

func (o *listOp) send() reply.Code {
	switch o.state {
	case listInit:
		return o.init()
	case listWaitLock:
		return o.waitLock()
	}
	return o.unexpected(OpList, "send")
}

func (o *listOp) init() reply.Code {
	if o.path.SegmentCount() > 1 {
		o.s.log.Warn("nested directories are not supported", "path", o.path)
		return reply.NotSupported
	}

	if o.flags&ListRefresh == 0 {
		if cached, found, stale := o.s.cache.Lookup(o.path); found && !stale && !cached.HasUnsure() {
			o.s.log.Debug("using cached listing", "path", o.path)
			o.complete(cached)
			return reply.OK
		}
	}

	if o.path.IsRoot() {
		o.state = listWaitLock
		return reply.Continue
	}

	id, res := o.s.lookupBucket(o.path.Segment(0))
	switch res {
	case lookupFound:
		o.bucket = id
		o.state = listWaitLock
		return reply.Continue
	case lookupMissing:
		o.s.log.Error("bucket not found", "path", o.path)
		return reply.Error
	}
	o.state = listWaitBuckets
	o.s.push(newListOp(o.s, remote.Root(), 0))
	return reply.Continue
}

func (o *listOp) waitLock() reply.Code {
	if !o.lockAsked {
		o.lockRequested = o.s.cache.Now()
		o.lockAsked = true
	}
	o.instance = o.s.instance
	if !o.s.cache.TryLockPath(o.path, o) {
		o.s.log.Debug("waiting for listing lock", "path", o.path)
		return reply.WouldBlock
	}

	// Someone else may have listed the path while we waited.
	cached, found, stale := o.s.cache.Lookup(o.path)
	if found && !stale && !cached.HasUnsure() && !cached.FirstListTime.Before(o.lockRequested) {
		o.complete(cached)
		return reply.OK
	}

	o.state = listList
	o.listing = remote.Listing{Path: o.path}
	if o.path.IsRoot() {
		return o.s.sendCommand("list-buckets", "")
	}
	return o.s.sendCommand("list "+o.bucket, "")
}

// parseEntry appends one ListEntry to the listing being built.
func (o *listOp) parseEntry(name, size, id string) reply.Code {
	if o.state != listList {
		return o.unexpected(OpList, "parseEntry")
	}

	e := remote.Entry{Name: name, ID: id, Size: -1}
	if o.path.IsRoot() {
		e.IsDir = true
	} else if n, err := strconv.ParseInt(size, 10, 64); err == nil {
		e.Size = n
	}
	o.listing.Append(e)
	return reply.WouldBlock
}

func (o *listOp) parseResponse() reply.Code {
	if o.state != listList {
		return o.unexpected(OpList, "parseResponse")
	}
	if o.s.lastCode != reply.OK {
		return o.s.lastCode
	}

	o.listing.FirstListTime = o.s.cache.Now()
	o.s.cache.Store(o.listing)
	o.complete(o.listing)
	o.s.emit(event.Event{Type: event.ListingUpdated, Path: o.path.String()})
	return reply.OK
}

func (o *listOp) subcommandResult(code reply.Code, _ operation) reply.Code {
	if o.state != listWaitBuckets {
		return o.unexpected(OpList, "subcommandResult")
	}
	if !code.IsOK() {
		return code
	}

	id, res := o.s.lookupBucket(o.path.Segment(0))
	if res != lookupFound {
		o.s.log.Error("bucket not found", "path", o.path)
		return reply.Error
	}
	o.bucket = id
	o.state = listWaitLock
	return reply.Continue
}

func (o *listOp) complete(l remote.Listing) {
	o.listing = l
	o.s.currentPath = o.path
}

func (o *listOp) reset(reply.Code) {
	if o.lockAsked {
		o.s.cache.UnlockPath(o.path, o)
	}
}

// OnLockObtained is called by the cache when the listing lock for path is
// handed to this operation.
func (o *listOp) OnLockObtained(path remote.Path) {
	o.s.post(Notice{op: o, Kind: NoticeLockObtained, Instance: o.instance, Path: path})
}

func (o *listOp) fillResult(r *Result) {
	r.Listing = o.listing
}
