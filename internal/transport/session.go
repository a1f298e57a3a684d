package transport

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/danmuck/propctl/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReplyMode reports how the service answered one exchange. Patched
// servers echo envelopes back; legacy servers just close. The mode is
// an explicit return so no detection state survives the call.
type ReplyMode int

const (
	NoReply ReplyMode = iota
	RepliedOnce
	StreamedReplies
)

func (m ReplyMode) String() string {
	switch m {
	case NoReply:
		return "no-reply"
	case RepliedOnce:
		return "replied-once"
	case StreamedReplies:
		return "streamed"
	default:
		return fmt.Sprintf("ReplyMode(%d)", int(m))
	}
}

var (
	ErrConnectFailed  = errors.New("transport: property service unreachable")
	ErrMalformedReply = errors.New("transport: reply is not one full envelope")
	ErrNoReply        = errors.New("transport: service closed without replying")
)

// Session is one connected property-service socket. It lives for a
// single exchange; the owner must Close it on every exit path.
type Session struct {
	conn net.Conn
	log  zerolog.Logger
}

// Dial connects to the property service socket. Interrupted connect
// attempts are restarted by the runtime, so any error here means the
// service is absent or unreachable.
func Dial(socketPath string) (*Session, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, socketPath, err)
	}
	return &Session{
		conn: conn,
		log:  log.With().Str("socket", socketPath).Logger(),
	}, nil
}

// Exchange writes one request envelope and consumes reply envelopes
// until the service closes the connection. Each reply is reported
// through onReply (which may be nil); the reply is decoded into its
// own value, never back into the request.
//
// A clean close with zero replies is success for SETPROP (its
// contract needs no reply) and for LISTPROP (an empty listing), but
// ErrNoReply for GETPROP: that is how a legacy, non-echoing server
// looks, and the caller uses it to fall back to static sources.
func (s *Session) Exchange(req protocol.Message, onReply func(name, value string)) (ReplyMode, error) {
	wire, err := req.Encode()
	if err != nil {
		return NoReply, err
	}
	if _, err := s.conn.Write(wire); err != nil {
		return NoReply, fmt.Errorf("transport: send: %w", err)
	}

	replies := 0
	buf := make([]byte, protocol.MessageSize)
	for {
		if _, err := io.ReadFull(s.conn, buf); err != nil {
			if errors.Is(err, io.EOF) {
				break // clean close on an envelope boundary
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return replyMode(replies), ErrMalformedReply
			}
			return replyMode(replies), fmt.Errorf("transport: recv: %w", err)
		}
		reply, err := protocol.Decode(buf)
		if err != nil {
			return replyMode(replies), err
		}
		replies++
		if onReply != nil {
			onReply(reply.Name, reply.Value)
		}
	}

	if replies == 0 && req.Cmd == protocol.CmdGet {
		return NoReply, ErrNoReply
	}
	s.log.Debug().
		Stringer("cmd", req.Cmd).
		Int("replies", replies).
		Msg("exchange complete")
	return replyMode(replies), nil
}

// Close is idempotent; only the first call closes the socket.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func replyMode(replies int) ReplyMode {
	switch {
	case replies == 0:
		return NoReply
	case replies == 1:
		return RepliedOnce
	default:
		return StreamedReplies
	}
}
