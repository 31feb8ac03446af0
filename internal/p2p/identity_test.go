package p2p

import (
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateAndLoadIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "identity.pem")

	identity, err := GenerateIdentity(path, false)
	if err != nil {
		t.Fatalf("GenerateIdentity() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("key file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadIdentity(path)
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}

	id1, _ := identity.NodeID()
	id2, _ := loaded.NodeID()
	if id1 != id2 || id1 == "" {
		t.Errorf("node ids differ: %s vs %s", id1, id2)
	}
}

func TestGenerateIdentity_NoForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.pem")

	first, err := GenerateIdentity(path, false)
	if err != nil {
		t.Fatalf("first GenerateIdentity() error = %v", err)
	}
	if _, err := GenerateIdentity(path, false); err == nil {
		t.Fatal("expected error when key exists")
	}

	second, err := GenerateIdentity(path, true)
	if err != nil {
		t.Fatalf("forced GenerateIdentity() error = %v", err)
	}
	a, _ := first.NodeID()
	b, _ := second.NodeID()
	if a == b {
		t.Error("forced regeneration kept the same key")
	}
}

func TestLoadOrGenerateIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.pem")

	first, err := LoadOrGenerateIdentity(path)
	if err != nil {
		t.Fatalf("LoadOrGenerateIdentity() error = %v", err)
	}
	second, err := LoadOrGenerateIdentity(path)
	if err != nil {
		t.Fatalf("second LoadOrGenerateIdentity() error = %v", err)
	}
	a, _ := first.NodeID()
	b, _ := second.NodeID()
	if a != b {
		t.Errorf("identity not persisted: %s != %s", a, b)
	}
}

func TestLoadIdentity_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadIdentity(filepath.Join(dir, "missing.pem")); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("missing key error = %v, want ErrIdentityNotFound", err)
	}

	tests := []struct {
		name    string
		content []byte
		wantErr error
	}{
		{"not pem", []byte("garbage"), ErrInvalidPEMBlock},
		{"wrong type", pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: make([]byte, 32)}), ErrInvalidKeyType},
		{"wrong length", pem.EncodeToMemory(&pem.Block{Type: PEMTypeEd25519Private, Bytes: make([]byte, 10)}), ErrInvalidKeyLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".pem")
			os.WriteFile(path, tt.content, 0600)
			if _, err := LoadIdentity(path); !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadIdentity() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadIdentity_SeedOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.pem")
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: PEMTypeEd25519Private, Bytes: seed}), 0600)

	if _, err := LoadIdentity(path); err != nil {
		t.Errorf("LoadIdentity(seed) error = %v", err)
	}
}
