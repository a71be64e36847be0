package console

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// GuestView is the slice of guest.Guest state the debug console needs,
// kept as an interface so this package never imports guest directly
// (guest already depends on syscallapi/kernel; console stays a leaf).
type GuestView interface {
	ID() string
	StateString() string
	TraceLog() []string
	GetProperty(name string) (string, bool)
	SetProperty(name, value string) bool
}

// Server is an SSH server exposing one guest's debug console: a tail of
// its syscall trace log and a small REPL over the Android property table
// (spec.md §9 "Debug console" supplemented feature). It is the embedder
// driver spec.md §6.5 says the core itself does not provide.
type Server struct {
	guest    GuestView
	config   *ssh.ServerConfig
	listener net.Listener

	mu      sync.Mutex
	closing bool
}

// NewServer builds a debug console server for guest, authenticating
// incoming connections against userCAPub (an authorized_keys-format CA
// public key) and presenting hostKey+hostCert as its own identity.
func NewServer(guest GuestView, hostKeyPEM, hostCertAuthorized, userCAPubAuthorized []byte) (*Server, error) {
	signer, err := ssh.ParsePrivateKey(hostKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("console: parse host key: %w", err)
	}

	certPub, _, _, _, err := ssh.ParseAuthorizedKey(hostCertAuthorized)
	if err != nil {
		return nil, fmt.Errorf("console: parse host cert: %w", err)
	}
	cert, ok := certPub.(*ssh.Certificate)
	if !ok {
		return nil, fmt.Errorf("console: host cert is not a certificate")
	}
	certSigner, err := ssh.NewCertSigner(cert, signer)
	if err != nil {
		return nil, fmt.Errorf("console: build cert signer: %w", err)
	}

	userCAPub, _, _, _, err := ssh.ParseAuthorizedKey(userCAPubAuthorized)
	if err != nil {
		return nil, fmt.Errorf("console: parse user CA pub: %w", err)
	}

	checker := &ssh.CertChecker{
		IsUserAuthority: func(auth ssh.PublicKey) bool {
			return bytesEqual(auth.Marshal(), userCAPub.Marshal())
		},
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: checker.Authenticate,
	}
	config.AddHostKey(certSigner)

	return &Server{guest: guest, config: config}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Serve accepts connections on l until the listener is closed or Close is
// called.
func (s *Server) Serve(l net.Listener) error {
	s.listener = l
	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConn(nc net.Conn) {
	sconn, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		slog.Warn("console.Server handshake failed", "error", err)
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			slog.Warn("console.Server accept channel failed", "error", err)
			continue
		}
		go s.serveSession(channel, requests)
	}
}

func (s *Server) serveSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "shell", "exec", "pty-req":
			req.Reply(true, nil)
		default:
			req.Reply(false, nil)
		}
		if req.Type == "shell" {
			s.runREPL(channel)
			return
		}
	}
}

// runREPL implements the debug console's two commands: "trace" tails the
// guest's syscall trace log, "get NAME"/"set NAME VALUE" read and write
// the Android property table, "quit"/"exit" ends the session. Anything
// else prints an "unknown command" line.
func (s *Server) runREPL(rw io.ReadWriter) {
	fmt.Fprintf(rw, "guestcore debug console: %s (%s)\r\n", s.guest.ID(), s.guest.StateString())
	fmt.Fprint(rw, "commands: trace, get NAME, set NAME VALUE, quit\r\n> ")

	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			fmt.Fprint(rw, "> ")
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return
		case "trace":
			for _, l := range s.guest.TraceLog() {
				fmt.Fprintf(rw, "%s\r\n", l)
			}
		case "get":
			if len(fields) != 2 {
				fmt.Fprint(rw, "usage: get NAME\r\n")
				break
			}
			if v, ok := s.guest.GetProperty(fields[1]); ok {
				fmt.Fprintf(rw, "%s\r\n", v)
			} else {
				fmt.Fprint(rw, "(unset)\r\n")
			}
		case "set":
			if len(fields) < 3 {
				fmt.Fprint(rw, "usage: set NAME VALUE\r\n")
				break
			}
			ok := s.guest.SetProperty(fields[1], strings.Join(fields[2:], " "))
			fmt.Fprintf(rw, "%s\r\n", strconv.FormatBool(ok))
		default:
			fmt.Fprintf(rw, "unknown command %q\r\n", fields[0])
		}
		fmt.Fprint(rw, "> ")
	}
}
