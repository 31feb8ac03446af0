package domain

import (
	"fmt"
	"strconv"
)

// FileKeyKind names the field a FileKey searches by.
type FileKeyKind string

const (
	FileKeyDescriptorHash FileKeyKind = "sd_hash"
	FileKeyFileName       FileKeyKind = "file_name"
	FileKeyStreamHash     FileKeyKind = "stream_hash"
	FileKeyRowID          FileKeyKind = "rowid"
	FileKeyClaimID        FileKeyKind = "claim_id"
	FileKeyOutpoint       FileKeyKind = "outpoint"
	FileKeyTxID           FileKeyKind = "txid"
	FileKeyNout           FileKeyKind = "nout"
	FileKeyChannelClaimID FileKeyKind = "channel_claim_id"
	FileKeyChannelName    FileKeyKind = "channel_name"
	FileKeyClaimName      FileKeyKind = "claim_name"
)

// FileKey selects stored files by one field. Build it with the By* constructors;
// the zero value matches everything.
type FileKey struct {
	kind  FileKeyKind
	value string
}

// Kind returns the searched field.
func (k FileKey) Kind() FileKeyKind { return k.kind }

// Value returns the searched value.
func (k FileKey) Value() string { return k.value }

// IsZero reports whether the key selects nothing in particular.
func (k FileKey) IsZero() bool { return k.kind == "" }

func (k FileKey) String() string {
	if k.IsZero() {
		return "<all>"
	}
	return fmt.Sprintf("%s=%s", k.kind, k.value)
}

// ByDescriptorHash selects the file of a stream descriptor.
func ByDescriptorHash(id ContentDescriptorID) FileKey {
	return FileKey{kind: FileKeyDescriptorHash, value: id.String()}
}

// ByFileName selects files by their name in the download directory.
func ByFileName(name string) FileKey { return FileKey{kind: FileKeyFileName, value: name} }

// ByStreamHash selects files by stream hash.
func ByStreamHash(h string) FileKey { return FileKey{kind: FileKeyStreamHash, value: h} }

// ByRowID selects a file by its database row id.
func ByRowID(id int64) FileKey {
	return FileKey{kind: FileKeyRowID, value: strconv.FormatInt(id, 10)}
}

// ByClaimID selects files downloaded through a claim.
func ByClaimID(id string) FileKey { return FileKey{kind: FileKeyClaimID, value: id} }

// ByOutpoint selects files by claim outpoint, "txid:nout".
func ByOutpoint(op string) FileKey { return FileKey{kind: FileKeyOutpoint, value: op} }

// ByTxID selects files by the transaction of their claim.
func ByTxID(txid string) FileKey { return FileKey{kind: FileKeyTxID, value: txid} }

// ByNout selects files by the output index of their claim.
func ByNout(nout int) FileKey { return FileKey{kind: FileKeyNout, value: strconv.Itoa(nout)} }

// ByChannelClaimID selects files published in a channel.
func ByChannelClaimID(id string) FileKey {
	return FileKey{kind: FileKeyChannelClaimID, value: id}
}

// ByChannelName selects files by the name of their channel.
func ByChannelName(name string) FileKey { return FileKey{kind: FileKeyChannelName, value: name} }

// ByClaimName selects files by claim name.
func ByClaimName(name string) FileKey { return FileKey{kind: FileKeyClaimName, value: name} }

// Matches reports whether the artifact satisfies the key.
func (k FileKey) Matches(a *Artifact) bool {
	switch k.kind {
	case "":
		return true
	case FileKeyDescriptorHash:
		return a.DescriptorHash.String() == k.value
	case FileKeyFileName:
		return a.FileName == k.value
	case FileKeyStreamHash:
		return a.StreamHash == k.value
	case FileKeyRowID:
		return strconv.FormatInt(a.RowID, 10) == k.value
	case FileKeyClaimID:
		return a.ClaimID == k.value
	case FileKeyOutpoint:
		return a.Outpoint == k.value
	case FileKeyTxID:
		return a.TxID == k.value
	case FileKeyNout:
		return a.ClaimID != "" && strconv.Itoa(a.Nout) == k.value
	case FileKeyChannelClaimID:
		return a.ChannelClaimID == k.value
	case FileKeyChannelName:
		return a.ChannelName == k.value
	case FileKeyClaimName:
		return a.ClaimName == k.value
	}
	return false
}
