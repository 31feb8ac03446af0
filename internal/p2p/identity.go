package p2p

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// PEMTypeEd25519Private is the PEM block type for Ed25519 private keys.
const PEMTypeEd25519Private = "ED25519 PRIVATE KEY"

var (
	// ErrIdentityNotFound indicates the identity key file does not exist.
	ErrIdentityNotFound = errors.New("identity key not found")

	// ErrInvalidPEMBlock indicates the PEM file has an invalid or missing block.
	ErrInvalidPEMBlock = errors.New("invalid or missing PEM block")

	// ErrInvalidKeyType indicates the PEM block has an unexpected type.
	ErrInvalidKeyType = errors.New("invalid key type in PEM block")

	// ErrInvalidKeyLength indicates the key has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid key length")
)

// Identity is the node's network key.
type Identity struct {
	PrivKey crypto.PrivKey
}

// NodeID returns the peer ID derived from the key.
func (i *Identity) NodeID() (peer.ID, error) {
	return peer.IDFromPrivateKey(i.PrivKey)
}

// LoadIdentity loads the node identity from path.
func LoadIdentity(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, path)
		}
		return nil, fmt.Errorf("failed to read identity key: %w", err)
	}

	privKey, err := parsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity key %s: %w", path, err)
	}
	return &Identity{PrivKey: privKey}, nil
}

// GenerateIdentity creates a new Ed25519 identity at path.
// An existing file is only replaced when force is set.
func GenerateIdentity(path string, force bool) (*Identity, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("identity key already exists at %s", path)
		}
	}

	privKey, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
	}
	if err := savePrivateKeyPEM(path, privKey); err != nil {
		return nil, err
	}

	getLogger("identity").Info("generated node identity", "path", path)
	return &Identity{PrivKey: privKey}, nil
}

// LoadOrGenerateIdentity loads the identity at path, creating it on first run.
func LoadOrGenerateIdentity(path string) (*Identity, error) {
	identity, err := LoadIdentity(path)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return nil, err
	}
	return GenerateIdentity(path, false)
}

func parsePrivateKeyPEM(data []byte) (crypto.PrivKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEMBlock
	}
	if block.Type != PEMTypeEd25519Private {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidKeyType, PEMTypeEd25519Private, block.Type)
	}

	// Either the 32-byte seed or the 64-byte seed+public key form.
	var seed []byte
	switch len(block.Bytes) {
	case ed25519.SeedSize:
		seed = block.Bytes
	case ed25519.PrivateKeySize:
		seed = block.Bytes[:ed25519.SeedSize]
	default:
		return nil, fmt.Errorf("%w: expected %d or %d bytes, got %d",
			ErrInvalidKeyLength, ed25519.SeedSize, ed25519.PrivateKeySize, len(block.Bytes))
	}

	stdPrivKey := ed25519.NewKeyFromSeed(seed)
	privKey, _, err := crypto.KeyPairFromStdKey(&stdPrivKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to libp2p key: %w", err)
	}
	return privKey, nil
}

func savePrivateKeyPEM(path string, privKey crypto.PrivKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := privKey.Raw()
	if err != nil {
		return fmt.Errorf("failed to get raw key bytes: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{Type: PEMTypeEd25519Private, Bytes: raw})
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write identity key: %w", err)
	}
	return nil
}
