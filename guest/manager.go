package guest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aurora-os/guestcore/internal/obs"
	"github.com/goombaio/namegenerator"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/ssh"
	_ "modernc.org/sqlite"
)

//go:embed db/schema.sql
var schemaSQL string

const hostKeyFilename = "host_ed25519_key"

// Manager owns the guest registry: the in-memory set of live guests plus
// their persisted record in a sqlite-backed store (spec.md §9 "VM world"
// top-level value an embedder creates and owns).
type Manager struct {
	mu      sync.Mutex
	appRoot string
	guests  map[string]*Guest
	sqlDB   *sql.DB
	namegen namegenerator.Generator
}

// NewManager opens (creating if necessary) the guest registry database at
// appRoot, initializes its schema, and generates a host identity key pair
// if one is not already present (spec.md §9 design notes: the embedder
// owns persistent state; this core only needs enough identity material
// for the debug console to authenticate guests later).
func NewManager(appRoot string) (*Manager, error) {
	if err := os.MkdirAll(appRoot, 0o750); err != nil {
		return nil, fmt.Errorf("guest: create app root: %w", err)
	}

	dbPath := filepath.Join(appRoot, "guestcore.db")
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("guest: open database: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("guest: enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("guest: initialize schema: %w", err)
	}

	if _, err := createHostKeyPairIfMissing(filepath.Join(appRoot, hostKeyFilename)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("guest: host key pair: %w", err)
	}

	return &Manager{
		appRoot: appRoot,
		guests:  map[string]*Guest{},
		sqlDB:   sqlDB,
		namegen: namegenerator.NewNameGenerator(0xA0000),
	}, nil
}

func (m *Manager) Close() error {
	if m.sqlDB != nil {
		return m.sqlDB.Close()
	}
	return nil
}

// Create allocates a new guest of the given arch (spec.md §4.7 create),
// naming it with a human-readable generated ID when id is empty, and
// persists the registry row.
func (m *Manager) Create(ctx context.Context, id string, arch Arch) (*Guest, error) {
	ctx, span := obs.StartSpan(ctx, "guest.Manager.Create", attribute.String("arch", arch.String()))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.namegen.Generate()
	}
	if _, exists := m.guests[id]; exists {
		return nil, fmt.Errorf("guest: id %q already exists", id)
	}

	g := New(id, arch)
	m.guests[id] = g

	_, err := m.sqlDB.ExecContext(ctx,
		`INSERT INTO guests (id, arch, state, cmdline, version_code) VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.Arch.String(), g.State().String(), "", 0)
	if err != nil {
		delete(m.guests, id)
		return nil, fmt.Errorf("guest: persist new guest: %w", err)
	}

	slog.InfoContext(ctx, "Manager.Create", "id", g.ID, "arch", g.Arch.String())
	return g, nil
}

func (m *Manager) Get(id string) (*Guest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[id]
	return g, ok
}

func (m *Manager) List() []*Guest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Guest, 0, len(m.guests))
	for _, g := range m.guests {
		out = append(out, g)
	}
	return out
}

// SyncRow persists a guest's current state, cmdline and version code
// (spec.md §9: persistence is an ambient concern the embedder needs,
// since the in-process singletons are not otherwise durable).
func (m *Manager) SyncRow(ctx context.Context, g *Guest) error {
	_, err := m.sqlDB.ExecContext(ctx,
		`UPDATE guests SET state = ?, cmdline = ?, version_code = ? WHERE id = ?`,
		g.State().String(), g.Cmdline(), g.VersionCode(), g.ID)
	if err != nil {
		return fmt.Errorf("guest: sync row for %s: %w", g.ID, err)
	}
	return nil
}

// Destroy tears down a guest (spec.md §4.7 destroy) and removes it from
// both the in-memory registry and the persisted row.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	ctx, span := obs.StartSpan(ctx, "guest.Manager.Destroy", attribute.String("id", id))
	defer span.End()

	m.mu.Lock()
	g, ok := m.guests[id]
	if ok {
		delete(m.guests, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("guest: unknown id %q", id)
	}
	g.Destroy()
	if _, err := m.sqlDB.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("guest: delete row for %s: %w", id, err)
	}
	return nil
}

func createHostKeyPairIfMissing(idPath string) (ssh.PublicKey, error) {
	if _, err := os.Stat(idPath); err == nil {
		return nil, nil
	}

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	sshPublicKey, err := ssh.NewPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("convert to ssh public key: %w", err)
	}

	pkBytes, err := ssh.MarshalPrivateKey(privateKey, "guestcore host key")
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.WriteFile(idPath, pem.EncodeToMemory(pkBytes), 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(idPath+".pub", ssh.MarshalAuthorizedKey(sshPublicKey), 0o644); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}
	return sshPublicKey, nil
}
