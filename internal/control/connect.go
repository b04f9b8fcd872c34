package control

import (
	"strings"

	"github.com/bamsammich/bucketctl/internal/protocol"
	"github.com/bamsammich/bucketctl/internal/reply"
)

const (
	connectInit = iota
	connectHost
	connectUser
	connectPass
)

type connectOp struct {
	opBase
	server Server
}

func newConnectOp(s *Socket, server Server) *connectOp {
	return &connectOp{opBase: opBase{s: s}, server: server}
}

func (*connectOp) kind() OpKind { return OpConnect }

func (o *connectOp) send() reply.Code {
	switch o.state {
	case connectInit:
		if err := o.s.spawn(); err != nil {
			o.s.log.Error("backend could not be started", "error", err)
			return reply.Error
		}
		o.s.log.Info("connecting", "server", o.server.Format())
		return reply.WouldBlock
	case connectHost:
		return o.s.sendCommand("host "+o.server.Format(), "")
	case connectUser:
		return o.s.sendCommand("user "+o.server.User, "")
	case connectPass:
		return o.s.sendCommand("pass "+o.server.Pass, "pass "+strings.Repeat("*", len(o.server.Pass)))
	}
	return o.unexpected(OpConnect, "send")
}

func (o *connectOp) parseResponse() reply.Code {
	if o.s.lastCode != reply.OK {
		o.s.log.Error("login failed", "state", o.state, "reply", o.s.lastText)
		return reply.Error
	}

	switch o.state {
	case connectInit:
		if o.s.lastText != protocol.Greeting(protocol.ProtocolVersion) {
			o.s.log.Warn("backend protocol version mismatch", "greeting", o.s.lastText)
			return reply.InternalError
		}
		o.state = connectHost
	case connectHost:
		o.state = connectUser
	case connectUser:
		o.state = connectPass
	case connectPass:
		o.s.log.Info("connected", "server", o.server.Format(), "user", o.server.User)
		return reply.OK
	default:
		return o.unexpected(OpConnect, "parseResponse")
	}
	return reply.Continue
}

func (o *connectOp) subcommandResult(reply.Code, operation) reply.Code {
	return o.unexpected(OpConnect, "subcommandResult")
}
