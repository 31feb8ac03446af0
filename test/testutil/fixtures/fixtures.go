// Package fixtures provides test streams, claims and configuration.
package fixtures

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"blobnet/internal/config"
	"blobnet/internal/domain"
	"blobnet/internal/storage/blob"
)

// Stream is a generated stream: its content pieces and the descriptor
// blob listing them.
type Stream struct {
	Name         string
	DescriptorID domain.ContentDescriptorID
	Descriptor   []byte
	StreamHash   string
	Pieces       []domain.PieceID
	TotalSize    int64

	// Blobs holds every blob of the stream, the descriptor included.
	Blobs map[domain.PieceID][]byte
}

// Head returns the first content piece.
func (s *Stream) Head() domain.PieceID {
	return s.Pieces[0]
}

// NewStream generates a stream of random pieces with the given sizes.
func NewStream(t testing.TB, name string, sizes ...int) *Stream {
	t.Helper()
	if len(sizes) == 0 {
		sizes = []int{1024}
	}

	s := &Stream{Name: name, Blobs: make(map[domain.PieceID][]byte)}
	sd := domain.StreamDescriptor{
		StreamType:        domain.StreamTypeLBRYFile,
		StreamName:        name,
		SuggestedFileName: name,
		Key:               "00112233445566778899aabbccddeeff",
	}

	for i, size := range sizes {
		data := make([]byte, size)
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("failed to generate piece: %v", err)
		}
		id := blob.HashBytes(data)
		s.Blobs[id] = data
		s.Pieces = append(s.Pieces, id)
		s.TotalSize += int64(size)
		sd.Pieces = append(sd.Pieces, domain.PieceInfo{Hash: id, Num: i, IV: "00", Length: int64(size)})
	}
	sd.Pieces = append(sd.Pieces, domain.PieceInfo{Num: len(sizes), IV: "00"})
	sd.StreamHash = string(blob.HashBytes([]byte("stream:" + name)))
	s.StreamHash = sd.StreamHash

	raw, err := json.Marshal(sd)
	if err != nil {
		t.Fatalf("failed to encode descriptor: %v", err)
	}
	s.Descriptor = raw
	s.DescriptorID = domain.ContentDescriptorID(blob.HashBytes(raw))
	s.Blobs[s.DescriptorID.PieceID()] = raw
	return s
}

// StreamClaimValue returns a serialized stream claim pointing at sd.
// A nil fee publishes free content.
func StreamClaimValue(sd domain.ContentDescriptorID, fee *domain.Fee) []byte {
	c := domain.Claim{
		Version:   "_0_0_1",
		ClaimType: domain.ClaimTypeStream,
		Stream: &domain.StreamClaim{
			Source: domain.Source{
				SourceType:  "lbry_sd_hash",
				Source:      sd.String(),
				ContentType: "application/octet-stream",
			},
			Metadata: domain.StreamMetadata{Title: "fixture", Fee: fee},
		},
	}
	raw, _ := json.Marshal(c)
	return raw
}

// CertificateClaimValue returns a serialized channel certificate claim.
func CertificateClaimValue() []byte {
	raw, _ := json.Marshal(domain.Claim{
		Version:     "_0_0_1",
		ClaimType:   domain.ClaimTypeCertificate,
		Certificate: json.RawMessage(`{"keyType":"SECP256k1"}`),
	})
	return raw
}

// StreamClaim returns a resolved claim for s under name.
func StreamClaim(name, claimID string, s *Stream, fee *domain.Fee) *domain.ResolvedClaim {
	return &domain.ResolvedClaim{
		ClaimID: claimID,
		Name:    name,
		TxID:    "tx" + claimID,
		Nout:    0,
		Height:  100,
		Amount:  decimal.NewFromInt(1),
		Value:   StreamClaimValue(s.DescriptorID, fee),
	}
}

// Fee returns a key fee of amount in currency.
func Fee(amount string, currency string) *domain.Fee {
	return &domain.Fee{Currency: currency, Amount: decimal.RequireFromString(amount)}
}

// BlobnetConfig returns a configuration rooted at dataDir that listens
// on loopback only.
func BlobnetConfig(dataDir string) *config.BlobnetConfig {
	cfg := config.DefaultBlobnetConfig()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"
	cfg.Server.DataDir = dataDir
	cfg.P2P.ListenAddresses = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.P2P.UseUPnP = false
	cfg.P2P.MDNS = false
	cfg.P2P.DHT.Mode = "server"
	cfg.Analytics.Enabled = false
	return cfg
}

// WriteConfigFile writes a config to a YAML file.
func WriteConfigFile(t testing.TB, dir string, cfg interface{}) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}
