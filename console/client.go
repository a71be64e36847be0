package console

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/creack/pty"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Dial connects to a guest's debug console over an already-established
// transport conn (typically a unix-socket or tcp dial made by the
// caller), authenticating with the CA-issued user certificate and
// verifying the server's host certificate against the host CA.
func Dial(conn net.Conn, userCert, userKey, hostCAPubAuthorized []byte) (*ssh.Client, error) {
	signer, err := ssh.ParsePrivateKey(userKey)
	if err != nil {
		return nil, fmt.Errorf("console: parse user key: %w", err)
	}
	certPub, _, _, _, err := ssh.ParseAuthorizedKey(userCert)
	if err != nil {
		return nil, fmt.Errorf("console: parse user cert: %w", err)
	}
	cert, ok := certPub.(*ssh.Certificate)
	if !ok {
		return nil, fmt.Errorf("console: user cert is not a certificate")
	}
	certSigner, err := ssh.NewCertSigner(cert, signer)
	if err != nil {
		return nil, fmt.Errorf("console: build cert signer: %w", err)
	}

	hostCAPub, _, _, _, err := ssh.ParseAuthorizedKey(hostCAPubAuthorized)
	if err != nil {
		return nil, fmt.Errorf("console: parse host CA pub: %w", err)
	}
	checker := &ssh.CertChecker{
		IsHostAuthority: func(auth ssh.PublicKey, address string) bool {
			return bytesEqual(auth.Marshal(), hostCAPub.Marshal())
		},
	}

	config := &ssh.ClientConfig{
		User:            "root",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(certSigner)},
		HostKeyCallback: checker.CheckHostKey,
	}

	sconn, chans, reqs, err := ssh.NewClientConn(conn, conn.RemoteAddr().String(), config)
	if err != nil {
		return nil, fmt.Errorf("console: handshake: %w", err)
	}
	return ssh.NewClient(sconn, chans, reqs), nil
}

// AttachInteractive opens a session on client, allocates a local pty to
// run the session's I/O through (so the host terminal sees a stable
// line-disciplined stream regardless of what the remote end echoes), and
// copies bytes between the two until the remote end closes (spec.md §9
// "cmd/vmctl shell"). It restores terminal state on return.
func AttachInteractive(client *ssh.Client) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("console: new session: %w", err)
	}
	defer session.Close()

	stdinPipe, err := session.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return err
	}

	ptyFile, ttyFile, err := pty.Open()
	if err != nil {
		return fmt.Errorf("console: allocate pty: %w", err)
	}
	defer ptyFile.Close()
	defer ttyFile.Close()

	if err := session.Shell(); err != nil {
		return fmt.Errorf("console: start shell: %w", err)
	}

	var restore func() error
	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			restore = func() error { return term.Restore(int(os.Stdin.Fd()), oldState) }
			defer restore()
		}
	}

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(ptyFile, stdout)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(stdinPipe, os.Stdin)
		done <- struct{}{}
	}()
	go io.Copy(os.Stdout, ptyFile)

	<-done
	return session.Wait()
}
