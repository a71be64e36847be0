package console

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

// mockFileSystem implements FileSystem for testing, grounded on the
// teacher's sshimmer_test.go MockFileSystem.
type mockFileSystem struct {
	Files       map[string][]byte
	CreatedDirs map[string]bool
	TempFiles   []string
	FailOn      map[string]error
}

func newMockFileSystem() *mockFileSystem {
	return &mockFileSystem{
		Files:       make(map[string][]byte),
		CreatedDirs: make(map[string]bool),
		FailOn:      make(map[string]error),
	}
}

func (m *mockFileSystem) Stat(name string) (fs.FileInfo, error) {
	if err, ok := m.FailOn["Stat"]; ok {
		return nil, err
	}
	if _, exists := m.Files[name]; exists {
		return nil, nil
	}
	if _, exists := m.CreatedDirs[name]; exists {
		return nil, nil
	}
	return nil, os.ErrNotExist
}

func (m *mockFileSystem) MkdirAll(name string, perm fs.FileMode) error {
	if err, ok := m.FailOn["MkdirAll"]; ok {
		return err
	}
	m.CreatedDirs[name] = true
	return nil
}

func (m *mockFileSystem) ReadFile(name string) ([]byte, error) {
	if err, ok := m.FailOn["ReadFile"]; ok {
		return nil, err
	}
	data, exists := m.Files[name]
	if !exists {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	return data, nil
}

func (m *mockFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	if err, ok := m.FailOn["WriteFile"]; ok {
		return err
	}
	m.Files[name] = data
	return nil
}

func (m *mockFileSystem) TempFile(dir, pattern string) (*os.File, error) {
	if err, ok := m.FailOn["TempFile"]; ok {
		return nil, err
	}
	tmpFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	m.TempFiles = append(m.TempFiles, tmpFile.Name())
	return tmpFile, nil
}

func (m *mockFileSystem) Rename(oldpath, newpath string) error {
	if err, ok := m.FailOn["Rename"]; ok {
		return err
	}
	if data, exists := m.Files[oldpath]; exists {
		m.Files[newpath] = data
		delete(m.Files, oldpath)
	}
	return nil
}

func (m *mockFileSystem) SafeWriteFile(name string, data []byte, perm fs.FileMode) error {
	if err, ok := m.FailOn["SafeWriteFile"]; ok {
		return err
	}
	if existing, exists := m.Files[name]; exists {
		m.Files[name+".bak"] = existing
	}
	m.Files[name] = data
	return nil
}

type mockKeyGenerator struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	sshPubKey  ssh.PublicKey
	caSigner   ssh.Signer
	FailOn     map[string]error
}

var _ KeyGenerator = &mockKeyGenerator{}

func newMockKeyGenerator(priv ed25519.PrivateKey, pub ed25519.PublicKey, sshPub ssh.PublicKey, caSigner ssh.Signer) *mockKeyGenerator {
	return &mockKeyGenerator{privateKey: priv, publicKey: pub, sshPubKey: sshPub, caSigner: caSigner, FailOn: make(map[string]error)}
}

func (m *mockKeyGenerator) GenerateKeyPair() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if err, ok := m.FailOn["GenerateKeyPair"]; ok {
		return nil, nil, err
	}
	return m.privateKey, m.publicKey, nil
}

func (m *mockKeyGenerator) ConvertToSSHPublicKey(publicKey ed25519.PublicKey) (ssh.PublicKey, error) {
	if err, ok := m.FailOn["ConvertToSSHPublicKey"]; ok {
		return nil, err
	}
	if m.caSigner != nil && bytes.Equal(publicKey, m.publicKey) {
		return m.caSigner.PublicKey(), nil
	}
	return m.sshPubKey, nil
}

func setupMocks(t *testing.T) (*mockFileSystem, *mockKeyGenerator) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate test key pair: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("generate test ssh public key: %v", err)
	}
	// The CA signer wraps the same private key GenerateKeyPair hands out,
	// so every public key ConvertToSSHPublicKey returns matches the private
	// key written beside it.
	caSigner, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("create ca signer: %v", err)
	}
	return newMockFileSystem(), newMockKeyGenerator(priv, pub, sshPub, caSigner)
}

func setupTestCertAuthority(t *testing.T) (*CertAuthority, *mockFileSystem, *mockKeyGenerator) {
	mockFS, mockKG := setupMocks(t)

	homePath := "/home/testuser"
	base := filepath.Join(homePath, ".config/guestcore")
	mockFS.CreatedDirs[base] = true
	mockFS.Files[filepath.Join(base, "ssh_config")] = []byte("")
	mockFS.Files[filepath.Join(base, "known_hosts")] = []byte("")

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", homePath)
	t.Cleanup(func() { os.Setenv("HOME", oldHome) })

	ca, err := newCertAuthorityWithDeps(t.Context(), mockFS, mockKG)
	if err != nil {
		t.Fatalf("newCertAuthorityWithDeps: %v", err)
	}
	return ca, mockFS, mockKG
}

func TestNewCertAuthorityCreatesRequiredDirectory(t *testing.T) {
	mockFS, mockKG := setupMocks(t)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", "/home/testuser")
	defer os.Setenv("HOME", oldHome)

	base := "/home/testuser/.config/guestcore"
	mockFS.Files[filepath.Join(base, "ssh_config")] = []byte("")
	mockFS.Files[filepath.Join(base, "known_hosts")] = []byte("")

	if _, err := newCertAuthorityWithDeps(t.Context(), mockFS, mockKG); err != nil {
		t.Fatalf("newCertAuthorityWithDeps: %v", err)
	}
	if !mockFS.CreatedDirs[base] {
		t.Errorf("expected %s to be created", base)
	}
}

func TestGetOrCreateKeyPairWritesBothFiles(t *testing.T) {
	ca, mockFS, _ := setupTestCertAuthority(t)

	keyPath := "/home/testuser/.config/guestcore/test_key"
	if _, _, err := ca.getOrCreateKeyPair(keyPath); err != nil {
		t.Fatalf("getOrCreateKeyPair: %v", err)
	}
	if _, exists := mockFS.Files[keyPath]; !exists {
		t.Errorf("private key not written at %s", keyPath)
	}
	pubKey, exists := mockFS.Files[keyPath+".pub"]
	if !exists {
		t.Fatalf("public key not written at %s.pub", keyPath)
	}
	if !bytes.HasPrefix(pubKey, []byte("ssh-ed25519 ")) {
		t.Errorf("public key has unexpected format: %s", pubKey)
	}
}

func TestIssueGuestKeys(t *testing.T) {
	ca, mockFS, mockKG := setupTestCertAuthority(t)

	keys, err := ca.IssueGuestKeys(t.Context(), "guest-0001")
	if err != nil {
		t.Fatalf("IssueGuestKeys: %v", err)
	}
	if keys == nil {
		t.Fatal("IssueGuestKeys returned nil keys")
	}
	if len(keys.HostKey) == 0 || len(keys.HostKeyCert) == 0 || len(keys.UserCAPub) == 0 {
		t.Errorf("IssueGuestKeys returned incomplete keys: %+v", keys)
	}
	if len(mockFS.CreatedDirs) == 0 {
		t.Error("expected at least one created directory")
	}
	if len(mockKG.privateKey) == 0 {
		t.Error("expected a generated private key")
	}
}

func TestIssueHostCertificatePrincipalsMatchGuestID(t *testing.T) {
	ca, _, mockKG := setupTestCertAuthority(t)

	pub, err := mockKG.ConvertToSSHPublicKey(mockKG.publicKey)
	if err != nil {
		t.Fatalf("ConvertToSSHPublicKey: %v", err)
	}
	cert, err := ca.issueHostCertificate("guest-1234", pub)
	if err != nil {
		t.Fatalf("issueHostCertificate: %v", err)
	}
	if len(cert.ValidPrincipals) != 1 || cert.ValidPrincipals[0] != "guest-1234" {
		t.Errorf("unexpected ValidPrincipals: %v", cert.ValidPrincipals)
	}
	if cert.CertType != ssh.HostCert {
		t.Errorf("expected host cert type, got %d", cert.CertType)
	}
}

func TestNewCertAuthorityWithErrors(t *testing.T) {
	mockFS := newMockFileSystem()
	mockFS.FailOn["MkdirAll"] = fmt.Errorf("mock mkdir error")
	mockKG := newMockKeyGenerator(nil, nil, nil, nil)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", "/home/testuser")
	defer os.Setenv("HOME", oldHome)

	if _, err := newCertAuthorityWithDeps(t.Context(), mockFS, mockKG); err == nil || !strings.Contains(err.Error(), "mock mkdir error") {
		t.Errorf("expected mkdir error, got: %v", err)
	}

	mockFS = newMockFileSystem()
	mockKG = newMockKeyGenerator(nil, nil, nil, nil)
	mockKG.FailOn["GenerateKeyPair"] = fmt.Errorf("mock key generation error")

	if _, err := newCertAuthorityWithDeps(t.Context(), mockFS, mockKG); err == nil || !strings.Contains(err.Error(), "key generation error") {
		t.Errorf("expected key generation error, got: %v", err)
	}
}
