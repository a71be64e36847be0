// Package console implements the SSH-reachable debug console (spec.md §6.5
// "embedders provide their own driver"): a certificate-authority-backed SSH
// setup so a host can connect to a running guest's debug shell without
// trust-on-first-use, plus the debug shell itself (syscall trace tail and
// Android property REPL). Adapted from the teacher's sshimmer.go, retargeted
// from sand container ssh access to guestcore's debug console.
package console

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
)

// GuestKeys is the set of ssh keys and certificates installed for a newly
// started guest's debug console sshd.
type GuestKeys struct {
	HostKey     []byte // host private key
	HostKeyPub  []byte // host public key
	HostKeyCert []byte // host key certificate, signed by the host CA
	UserCAPub   []byte // public key for the user certificate authority
}

// CertAuthority owns the host and user certificate authorities used to
// authenticate debug console connections, and the host's own ssh client
// identity used to connect out to a guest.
type CertAuthority struct {
	localDomain string

	knownHostsPath   string
	userIdentityPath string

	hostCAPath      string
	hostCA          ssh.Signer
	hostCAPublicKey ssh.PublicKey

	userCAPath      string
	userCertPath    string
	userCertificate []byte
	userCA          ssh.Signer
	userCAPublicKey ssh.PublicKey

	fs FileSystem
	kg KeyGenerator
}

// NewCertAuthority sets up (or loads) the host and user certificate
// authorities under ~/.config/guestcore, so ssh connections to a guest's
// debug console can be verified both ways without manual known_hosts
// management.
func NewCertAuthority(ctx context.Context) (*CertAuthority, error) {
	return newCertAuthorityWithDeps(ctx, &RealFileSystem{}, &RealKeyGenerator{})
}

func newCertAuthorityWithDeps(ctx context.Context, fs FileSystem, kg KeyGenerator) (*CertAuthority, error) {
	base := filepath.Join(os.Getenv("HOME"), ".config", "guestcore")
	if _, err := fs.Stat(base); err != nil {
		if err := fs.MkdirAll(base, 0o777); err != nil {
			return nil, fmt.Errorf("couldn't create %s: %w", base, err)
		}
	}

	c := &CertAuthority{
		localDomain:      "guest",
		knownHostsPath:   filepath.Join(base, "known_hosts"),
		userIdentityPath: filepath.Join(base, "user_key"),

		hostCAPath:   filepath.Join(base, "host_ca"),
		userCAPath:   filepath.Join(base, "user_ca"),
		userCertPath: filepath.Join(base, "user_cert"),
		fs:           fs,
		kg:           kg,
	}

	slog.DebugContext(ctx, "newCertAuthorityWithDeps", "getOrCreateCA userCAPath", c.userCAPath)
	userCASigner, userCAPublicKey, err := c.getOrCreateCA(c.userCAPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't get user CA from %s: %w", c.userCAPath, err)
	}
	c.userCA = userCASigner
	c.userCAPublicKey = userCAPublicKey

	userPubKey, _, err := c.getOrCreateKeyPair(c.userIdentityPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't create user identity from %s: %w", c.userIdentityPath, err)
	}

	userCert, err := c.issueUserCertificate(userPubKey)
	if err != nil {
		return nil, fmt.Errorf("couldn't issue user cert: %w", err)
	}
	c.userCertificate = userCert.Marshal()
	if err := c.writeKeyToFile(ssh.MarshalAuthorizedKey(userCert), c.userIdentityPath+"-cert.pub"); err != nil {
		return nil, err
	}
	if err := writeConsoleSSHConfig(c.fs); err != nil {
		return nil, fmt.Errorf("writeConsoleSSHConfig: %w", err)
	}

	slog.InfoContext(ctx, "newCertAuthorityWithDeps", "getOrCreateCA hostCAPath", c.hostCAPath)
	hostCASigner, hostCAPublicKey, err := c.getOrCreateCA(c.hostCAPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't get host CA from %s: %w", c.hostCAPath, err)
	}
	c.hostCA = hostCASigner
	c.hostCAPublicKey = hostCAPublicKey
	if err := c.addHostCAToKnownHosts(); err != nil {
		return nil, fmt.Errorf("addHostCAToKnownHosts: %w", err)
	}

	return c, nil
}

// IssueGuestKeys generates a fresh host key pair for a guest and signs it
// with the host CA, returning everything the guest's debug console sshd
// needs plus the user CA public key it should trust.
func (c *CertAuthority) IssueGuestKeys(ctx context.Context, guestID string) (*GuestKeys, error) {
	privateKey, publicKey, err := c.kg.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("error generating key pair: %w", err)
	}

	hostPubKey, err := c.kg.ConvertToSSHPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("error converting to SSH public key: %w", err)
	}

	hostPrivKey := encodePrivateKeyToPEM(privateKey)

	hostCert, err := c.issueHostCertificate(guestID, hostPubKey)
	if err != nil {
		return nil, fmt.Errorf("couldn't issue host cert: %w", err)
	}

	return &GuestKeys{
		HostKey:     hostPrivKey,
		HostKeyPub:  ssh.MarshalAuthorizedKey(hostPubKey),
		HostKeyCert: ssh.MarshalAuthorizedKey(hostCert),
		UserCAPub:   ssh.MarshalAuthorizedKey(c.userCAPublicKey),
	}, nil
}

func (c *CertAuthority) writeKeyToFile(keyBytes []byte, filename string) error {
	return c.fs.WriteFile(filename, keyBytes, 0o600)
}

func (c *CertAuthority) getOrCreateKeyPair(idPath string) (ssh.PublicKey, []byte, error) {
	if _, err := c.fs.Stat(idPath); err == nil {
		pubkeyBytes, err := c.fs.ReadFile(idPath + ".pub")
		if err != nil {
			return nil, nil, fmt.Errorf("reading public key from %s: %w", idPath+".pub", err)
		}
		pubkey, _, _, _, err := ssh.ParseAuthorizedKey(pubkeyBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing public key from %s: %w", idPath+".pub", err)
		}
		privateKeyBytes, err := c.fs.ReadFile(idPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading private key from %s: %w", idPath, err)
		}
		return pubkey, privateKeyBytes, nil
	}

	privateKey, publicKey, err := c.kg.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("error generating key pair: %w", err)
	}

	sshPublicKey, err := c.kg.ConvertToSSHPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error converting to SSH public key: %w", err)
	}

	privateKeyPEM := encodePrivateKeyToPEM(privateKey)
	if err := c.writeKeyToFile(privateKeyPEM, idPath); err != nil {
		return nil, nil, fmt.Errorf("error writing private key to file: %w", err)
	}
	pubKeyBytes := ssh.MarshalAuthorizedKey(sshPublicKey)
	if err := c.writeKeyToFile(pubKeyBytes, idPath+".pub"); err != nil {
		return nil, nil, fmt.Errorf("error writing public key to file: %w", err)
	}
	return sshPublicKey, privateKeyPEM, nil
}

func (c *CertAuthority) issueHostCertificate(guestID string, certPub ssh.PublicKey) (*ssh.Certificate, error) {
	cert := &ssh.Certificate{
		Key:             certPub,
		Serial:          1,
		CertType:        ssh.HostCert,
		KeyId:           guestID + " console host key",
		ValidPrincipals: []string{guestID},
		ValidAfter:      uint64(time.Now().Add(-24 * time.Hour).Unix()),
		ValidBefore:     uint64(time.Now().Add(720 * time.Hour).Unix()),
		Permissions: ssh.Permissions{
			Extensions: map[string]string{
				"permit-pty": "",
			},
		},
	}
	if err := cert.SignCert(rand.Reader, c.hostCA); err != nil {
		return nil, fmt.Errorf("signing host certificate: %w", err)
	}
	return cert, nil
}

func (c *CertAuthority) addHostCAToKnownHosts() error {
	var caPublicKeyLine string
	if c.hostCAPublicKey != nil {
		caLine := "@cert-authority *." + c.localDomain + " " + string(ssh.MarshalAuthorizedKey(c.hostCAPublicKey))
		caPublicKeyLine = strings.TrimSpace(caLine)
	}

	outputLines := []string{}
	existingContent, err := c.fs.ReadFile(c.knownHostsPath)
	if err == nil {
		scanner := bufio.NewScanner(bytes.NewReader(existingContent))
		for scanner.Scan() {
			line := scanner.Text()
			if caPublicKeyLine != "" && strings.HasPrefix(line, "@cert-authority * ") {
				continue
			}
			outputLines = append(outputLines, line)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("couldn't read known_hosts file: %w", err)
	}

	if caPublicKeyLine != "" {
		outputLines = append(outputLines, caPublicKeyLine)
	}

	return c.fs.SafeWriteFile(c.knownHostsPath, []byte(strings.Join(outputLines, "\n")), 0o644)
}

func (c *CertAuthority) issueUserCertificate(certPub ssh.PublicKey) (*ssh.Certificate, error) {
	cert := &ssh.Certificate{
		Key:             certPub,
		Serial:          1,
		CertType:        ssh.UserCert,
		KeyId:           "guestcore-user",
		ValidPrincipals: []string{"root"},
		ValidAfter:      uint64(time.Now().Add(-24 * time.Hour).Unix()),
		ValidBefore:     uint64(time.Now().Add(720 * time.Hour).Unix()),
		Permissions: ssh.Permissions{
			Extensions: map[string]string{
				"permit-pty": "",
			},
		},
	}
	if err := cert.SignCert(rand.Reader, c.userCA); err != nil {
		return nil, fmt.Errorf("signing user certificate: %w", err)
	}
	return cert, nil
}

func (c *CertAuthority) getOrCreateCA(path string) (ssh.Signer, ssh.PublicKey, error) {
	if _, err := c.fs.Stat(path); err == nil {
		caPrivKeyPEM, err := c.fs.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading CA file %s: %w", path, err)
		}
		privKey, err := ssh.ParsePrivateKey(caPrivKeyPEM)
		if err != nil {
			return nil, nil, err
		}
		return privKey, privKey.PublicKey(), nil
	}

	pri, pub, err := c.kg.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("generating key pair: %w", err)
	}

	caPublicKey, err := c.kg.ConvertToSSHPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("converting to ssh public key: %w", err)
	}
	if err := c.writeKeyToFile(ssh.MarshalAuthorizedKey(caPublicKey), path+".pub"); err != nil {
		return nil, nil, fmt.Errorf("writing CA public key to file: %w", err)
	}

	caPrivKeyPEM := encodePrivateKeyToPEM(pri)
	if err := c.writeKeyToFile(caPrivKeyPEM, path); err != nil {
		return nil, nil, fmt.Errorf("writing CA private key to file: %w", err)
	}

	caSigner, err := ssh.NewSignerFromKey(pri)
	if err != nil {
		return nil, nil, fmt.Errorf("creating CA signer from private key: %w", err)
	}
	return caSigner, caPublicKey, nil
}

func writeConsoleSSHConfig(fs FileSystem) error {
	identityPath := filepath.Join(os.Getenv("HOME"), ".config", "guestcore", "user_key")
	consoleSSHConfigPath := filepath.Join(os.Getenv("HOME"), ".config", "guestcore", "ssh_config")
	knownHostsPath := filepath.Join(os.Getenv("HOME"), ".config", "guestcore", "known_hosts")

	hostPattern, err := ssh_config.NewPattern("*.guest")
	if err != nil {
		return err
	}
	cfg := &ssh_config.Config{
		Hosts: []*ssh_config.Host{
			{
				Patterns: []*ssh_config.Pattern{hostPattern},
				Nodes: []ssh_config.Node{
					&ssh_config.KV{Key: "IdentityFile", Value: identityPath},
					&ssh_config.KV{Key: "UserKnownHostsFile", Value: knownHostsPath},
					&ssh_config.KV{Key: "CanonicalizeHostname", Value: "yes"},
					&ssh_config.KV{Key: "CanonicalDomains", Value: "guest"},
				},
			},
		},
	}

	cfgBytes, err := cfg.MarshalText()
	if err != nil {
		return fmt.Errorf("couldn't marshal ssh_config: %w", err)
	}
	return fs.SafeWriteFile(consoleSSHConfigPath, cfgBytes, 0o644)
}

// encodePrivateKeyToPEM encodes an Ed25519 private key for storage.
func encodePrivateKeyToPEM(privateKey ed25519.PrivateKey) []byte {
	pkBytes, err := ssh.MarshalPrivateKey(privateKey, "guestcore console key")
	if err != nil {
		panic(fmt.Sprintf("failed to marshal private key: %v", err))
	}
	return pem.EncodeToMemory(pkBytes)
}

// FileSystem represents a filesystem interface for testability.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	MkdirAll(name string, perm fs.FileMode) error
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	TempFile(dir, pattern string) (*os.File, error)
	Rename(oldpath, newpath string) error
	SafeWriteFile(name string, data []byte, perm fs.FileMode) error
}

// RealFileSystem is the default implementation of FileSystem that uses the OS.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (rfs *RealFileSystem) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(name, perm)
}
func (rfs *RealFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }
func (rfs *RealFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}
func (rfs *RealFileSystem) TempFile(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}
func (rfs *RealFileSystem) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

// SafeWriteFile writes data to a temporary file, syncs it, backs up any
// existing file, then renames the temp file into place.
func (rfs *RealFileSystem) SafeWriteFile(name string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(name)
	tmpFile, err := rfs.TempFile(dir, filepath.Base(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("couldn't create temporary file: %w", err)
	}
	tmpFilename := tmpFile.Name()
	defer os.Remove(tmpFilename)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("couldn't write to temporary file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("couldn't sync temporary file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("couldn't close temporary file: %w", err)
	}

	if _, err := rfs.Stat(name); err == nil {
		backupName := name + ".bak"
		_ = os.Remove(backupName)
		if err := rfs.Rename(name, backupName); err != nil {
			return fmt.Errorf("couldn't create backup file: %w", err)
		}
	}

	if err := rfs.Rename(tmpFilename, name); err != nil {
		return fmt.Errorf("couldn't rename temporary file to target: %w", err)
	}
	return os.Chmod(name, perm)
}

// KeyGenerator represents an interface for generating SSH keys for testability.
type KeyGenerator interface {
	GenerateKeyPair() (ed25519.PrivateKey, ed25519.PublicKey, error)
	ConvertToSSHPublicKey(publicKey ed25519.PublicKey) (ssh.PublicKey, error)
}

// RealKeyGenerator is the default implementation of KeyGenerator.
type RealKeyGenerator struct{}

func (kg *RealKeyGenerator) GenerateKeyPair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	return privateKey, publicKey, err
}

func (kg *RealKeyGenerator) ConvertToSSHPublicKey(publicKey ed25519.PublicKey) (ssh.PublicKey, error) {
	return ssh.NewPublicKey(publicKey)
}
