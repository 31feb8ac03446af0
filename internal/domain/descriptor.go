package domain

import (
	"encoding/json"
	"fmt"
)

// StreamTypeLBRYFile is the only stream type the downloader understands.
const StreamTypeLBRYFile = "lbryfile"

// PieceInfo describes one entry in a stream descriptor.
type PieceInfo struct {
	// Hash is empty for the terminating entry.
	Hash   PieceID `json:"blob_hash,omitempty"`
	Num    int     `json:"blob_num"`
	IV     string  `json:"iv"`
	Length int64   `json:"length"`
}

// IsTerminator reports whether the entry marks the end of the stream.
func (p PieceInfo) IsTerminator() bool {
	return p.Hash == "" && p.Length == 0
}

// StreamDescriptor is the parsed manifest stored in a descriptor blob.
// It is immutable after parsing.
type StreamDescriptor struct {
	ID                ContentDescriptorID `json:"-"`
	StreamType        string              `json:"stream_type"`
	StreamName        string              `json:"stream_name"`
	StreamHash        string              `json:"stream_hash"`
	SuggestedFileName string              `json:"suggested_file_name"`
	Key               string              `json:"key"`
	Pieces            []PieceInfo         `json:"blobs"`

	// TotalSize is the sum of all piece lengths in bytes.
	TotalSize int64 `json:"-"`
}

// ParseStreamDescriptor decodes and validates a descriptor blob.
func ParseStreamDescriptor(id ContentDescriptorID, data []byte) (*StreamDescriptor, error) {
	var sd StreamDescriptor
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("%w: stream descriptor %s: %v", ErrDecode, id, err)
	}
	if len(sd.Pieces) == 0 {
		return nil, fmt.Errorf("%w: stream descriptor %s lists no blobs", ErrDecode, id)
	}
	if !sd.Pieces[len(sd.Pieces)-1].IsTerminator() {
		return nil, fmt.Errorf("%w: stream descriptor %s is not terminated", ErrDecode, id)
	}

	var total int64
	for i, p := range sd.Pieces[:len(sd.Pieces)-1] {
		if err := p.Hash.Validate(); err != nil {
			return nil, fmt.Errorf("%w: stream descriptor %s blob %d: %v", ErrDecode, id, i, err)
		}
		if p.Length <= 0 {
			return nil, fmt.Errorf("%w: stream descriptor %s blob %d has length %d", ErrDecode, id, i, p.Length)
		}
		total += p.Length
	}

	sd.ID = id
	sd.TotalSize = total
	return &sd, nil
}

// ContentPieces returns the data-carrying entries, excluding the terminator.
func (sd *StreamDescriptor) ContentPieces() []PieceInfo {
	if len(sd.Pieces) == 0 {
		return nil
	}
	return sd.Pieces[:len(sd.Pieces)-1]
}

// ContentPieceCount is the number of data-carrying pieces.
func (sd *StreamDescriptor) ContentPieceCount() int {
	return len(sd.ContentPieces())
}

// HeadPiece returns the first content piece, if any.
func (sd *StreamDescriptor) HeadPiece() (PieceID, bool) {
	pieces := sd.ContentPieces()
	if len(pieces) == 0 {
		return "", false
	}
	return pieces[0].Hash, true
}
