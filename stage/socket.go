package stage

import (
	"io"
	"net"
	"os"
	"time"

	"github.com/quietloop/vaultpipe/internal/coreerr"
)

// Socket is a bottom-of-chain stage backed by a Unix-domain or TCP stream
// socket (spec.md §4.J). A Socket is constructed as either a local-path
// (Unix) endpoint or a hostname+port (TCP) endpoint, and as either a server
// (Listen then Accept per connection) or a client (Open connects).
type Socket struct {
	network string // "unix" or "tcp"
	addr    string
	server  bool

	ln   net.Listener
	conn net.Conn

	readTimeout  time.Duration
	writeTimeout time.Duration

	offset int64
}

// NewUnixSocket returns a socket stage bound to a local filesystem path.
func NewUnixSocket(path string, server bool) *Socket {
	return &Socket{network: "unix", addr: path, server: server}
}

// NewTCPSocket returns a socket stage bound to hostname:port.
func NewTCPSocket(hostport string, server bool) *Socket {
	return &Socket{network: "tcp", addr: hostport, server: server}
}

// SetReadTimeout configures the deadline applied before each Get/read.
func (s *Socket) SetReadTimeout(d time.Duration) { s.readTimeout = d }

// SetWriteTimeout configures the deadline applied before each Put/write.
func (s *Socket) SetWriteTimeout(d time.Duration) { s.writeTimeout = d }

// Listen binds (unlinking a stale Unix path first) and listens with the
// given backlog hint. Call this on the server instance before accepting
// per-connection instances with Accept.
func (s *Socket) Listen(backlog int) error {
	if s.network == "unix" {
		if fi, err := os.Stat(s.addr); err == nil && (fi.Mode()&os.ModeSocket) != 0 {
			// Only a stale path is unlinked: if something still accepts
			// connections on it, it is left alone and the bind below fails.
			if c, derr := net.Dial("unix", s.addr); derr == nil {
				_ = c.Close()
			} else {
				_ = os.Remove(s.addr)
			}
		}
	}
	ln, err := net.Listen(s.network, s.addr)
	if err != nil {
		return coreerr.Wrap(coreerr.Resource, "socket.listen", err)
	}
	s.ln = ln
	return nil
}

// Open connects a client instance. Server instances do not call Open
// themselves; spec.md's "open() on a copy of a listening server" is realized
// in Go as Accept, which returns a fresh per-connection Socket sharing the
// listener's address and network.
func (s *Socket) Open() error {
	if s.ln != nil {
		return coreerr.New(coreerr.InvalidUse, "socket.open")
	}
	s.offset = 0
	conn, err := net.Dial(s.network, s.addr)
	if err != nil {
		return coreerr.Wrap(coreerr.Resource, "socket.connect", err)
	}
	s.conn = conn
	return nil
}

// Accept blocks until one connection arrives on a listening socket and
// returns a new Socket stage wrapping it, already open.
func (s *Socket) Accept() (*Socket, error) {
	if s.ln == nil {
		return nil, coreerr.New(coreerr.InvalidUse, "socket.accept")
	}
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Resource, "socket.accept", err)
	}
	return &Socket{network: s.network, addr: s.addr, conn: conn}, nil
}

// Close closes the connected socket (not the listener — use Release for
// that).
func (s *Socket) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return coreerr.Wrap(coreerr.IO, "socket.close", err)
}

// Release closes the listening socket and unlinks a Unix path.
func (s *Socket) Release() error {
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	if s.network == "unix" {
		_ = os.Remove(s.addr)
	}
	return coreerr.Wrap(coreerr.IO, "socket.release", err)
}

// Read returns whatever is available without padding to len(buf), in
// contrast to Get, which loops until satisfied or failure. A peer that has
// closed the connection reads as 0 bytes with no error (end-of-stream).
func (s *Socket) Read(buf []byte) (int, error) {
	if s.readTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	n, err := s.conn.Read(buf)
	s.offset += int64(n)
	if err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, coreerr.Wrap(coreerr.IO, "socket.read", err)
	}
	return n, nil
}

// Get loops until len(buf) bytes are read, the peer closes the connection,
// or a failure occurs.
func (s *Socket) Get(buf []byte) (int, error) {
	count := 0
	for count < len(buf) {
		n, err := s.Read(buf[count:])
		count += n
		if err != nil {
			return count, err
		}
		if n == 0 {
			break
		}
	}
	return count, nil
}

// Put loops until len(buf) bytes are written or a failure occurs.
func (s *Socket) Put(buf []byte) (int, error) {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	count := 0
	for count < len(buf) {
		n, err := s.conn.Write(buf[count:])
		count += n
		s.offset += int64(n)
		if err != nil {
			return count, coreerr.Wrap(coreerr.IO, "socket.put", err)
		}
		if n == 0 {
			break
		}
	}
	return count, nil
}

func (s *Socket) Path() string  { return s.addr }
func (s *Socket) Offset() int64 { return s.offset }
func (s *Socket) Child() Stage  { return nil }
