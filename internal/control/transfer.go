package control

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bamsammich/bucketctl/internal/event"
	"github.com/bamsammich/bucketctl/internal/hash"
	"github.com/bamsammich/bucketctl/internal/protocol"
	"github.com/bamsammich/bucketctl/internal/remote"
	"github.com/bamsammich/bucketctl/internal/reply"
)

// TransferSettings tune a single FileTransfer.
type TransferSettings struct {
	// Resume continues a partial download instead of starting over.
	Resume bool
	// Checksum computes a BLAKE3 digest of a completed download.
	Checksum bool
}

const (
	transferInit = iota
	transferResolve
	transferTransfer
)

type transferOp struct {
	opBase
	local      string
	remotePath remote.Path
	remoteName string
	identity   Identity
	checksum   string
	localSize  int64
	remoteSize int64
	settings   TransferSettings
	download   bool
	started    bool
}

func newTransferOp(
	s *Socket,
	local string,
	remotePath remote.Path,
	remoteName string,
	download bool,
	settings TransferSettings,
) *transferOp {
	return &transferOp{
		opBase:     opBase{s: s},
		local:      local,
		remotePath: remotePath,
		remoteName: remoteName,
		download:   download,
		settings:   settings,
		localSize:  -1,
		remoteSize: -1,
	}
}

func (*transferOp) kind() OpKind { return OpFileTransfer }

func (o *transferOp) send() reply.Code {
	switch o.state {
	case transferInit:
		return o.init()
	case transferTransfer:
		return o.start()
	}
	return o.unexpected(OpFileTransfer, "send")
}

func (o *transferOp) init() reply.Code {
	if o.local == "" {
		o.s.log.Warn("transfer without a local file", "download", o.download)
		if o.download {
			return reply.SyntaxError
		}
		return reply.CriticalError
	}
	if o.remotePath.IsEmpty() || o.remotePath.IsRoot() {
		o.s.log.Error("files cannot be stored in the root directory", "name", o.remoteName)
		return reply.NotSupported
	}

	if !o.download {
		info, err := os.Stat(o.local)
		if err != nil {
			o.s.log.Error("cannot read local file", "path", o.local, "error", err)
			return reply.CriticalError
		}
		o.localSize = info.Size()
	}

	o.state = transferResolve
	o.s.push(newResolveOp(o.s, o.remotePath, o.remoteName, true, o.download, false))
	return reply.Continue
}

func (o *transferOp) start() reply.Code {
	var startOffset int64
	if o.download {
		if o.settings.Resume {
			if info, err := os.Stat(o.local); err == nil {
				startOffset = info.Size()
			}
		} else if err := os.MkdirAll(filepath.Dir(o.local), 0o755); err != nil {
			o.s.log.Error("cannot create local directory", "path", o.local, "error", err)
			return reply.CriticalError
		}
	}

	total := o.localSize
	if o.download {
		total = o.remoteSize
	}
	o.s.stats.Init(total, startOffset, o.download)
	o.s.stats.SetStartTime()
	o.started = true
	o.s.emit(event.Event{
		Type:     event.TransferStarted,
		Path:     o.remotePath.FormatFilename(o.remoteName),
		Local:    o.local,
		Size:     total,
		Download: o.download,
	})

	if o.download {
		return o.s.sendCommand(fmt.Sprintf("get %s %s %s",
			o.identity.BucketID, o.identity.FileID, protocol.Quote(o.local)), "")
	}
	return o.s.sendCommand(fmt.Sprintf("put %s %s %s",
		o.identity.BucketID, protocol.Quote(o.local), protocol.Quote(o.remoteName)), "")
}

func (o *transferOp) parseResponse() reply.Code {
	if o.state != transferTransfer {
		return o.unexpected(OpFileTransfer, "parseResponse")
	}

	code := o.s.lastCode
	if !code.IsOK() {
		return code
	}

	if o.download {
		if o.settings.Checksum {
			sum, err := hash.File(o.local)
			if err != nil {
				o.s.log.Warn("checksum failed", "path", o.local, "error", err)
			}
			o.checksum = sum
		}
	} else {
		o.s.cache.AddEntry(o.remotePath, o.remoteName, false)
	}
	return code
}

func (o *transferOp) subcommandResult(code reply.Code, child operation) reply.Code {
	r, ok := child.(*resolveOp)
	if o.state != transferResolve || !ok {
		return o.unexpected(OpFileTransfer, "subcommandResult")
	}
	if !code.IsOK() {
		return code
	}

	o.identity = r.identity
	if o.download {
		if e, found, _ := o.s.cache.LookupFile(o.remotePath, o.remoteName); found {
			o.remoteSize = e.Size
		}
	}
	o.state = transferTransfer
	return reply.Continue
}

func (o *transferOp) reset(code reply.Code) {
	if !o.started {
		return
	}
	o.started = false
	o.s.stats.Finish(code.IsOK())

	ev := event.Event{
		Type:     event.TransferCompleted,
		Path:     o.remotePath.FormatFilename(o.remoteName),
		Local:    o.local,
		Checksum: o.checksum,
		Size:     o.s.stats.Snapshot().BytesTransferred,
		Download: o.download,
	}
	if !code.IsOK() {
		ev.Type = event.TransferFailed
		ev.Error = code.Err()
	}
	o.s.emit(ev)
}

func (o *transferOp) fillResult(r *Result) {
	r.Identity = o.identity
	r.Checksum = o.checksum
}
