package p2p

import (
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	mhcore "github.com/multiformats/go-multihash/core"

	"blobnet/internal/domain"
)

// PieceCID maps a piece hash onto the CID under which it is provided in
// the DHT: a raw CIDv1 over the SHA2-384 multihash.
func PieceCID(id domain.PieceID) (cid.Cid, error) {
	if err := id.Validate(); err != nil {
		return cid.Undef, err
	}
	digest, err := hex.DecodeString(id.String())
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	mh, err := multihash.Encode(digest, mhcore.SHA2_384)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// PieceFromCID is the inverse of PieceCID.
func PieceFromCID(c cid.Cid) (domain.PieceID, error) {
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if decoded.Code != mhcore.SHA2_384 {
		return "", fmt.Errorf("%w: unexpected multihash %s", domain.ErrInvalidInput, decoded.Name)
	}
	return domain.PieceID(hex.EncodeToString(decoded.Digest)), nil
}
