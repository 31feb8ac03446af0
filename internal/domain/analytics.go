package domain

// UnknownHost is reported when the peer a piece came from is not recorded.
const UnknownHost = "unknown"

// DownloadReport is the best-effort diagnostic attached to download
// finished/errored events.
type DownloadReport struct {
	DescriptorHash ContentDescriptorID `json:"sd_hash"`
	StreamHash     string              `json:"stream_hash"`
	DescriptorHost string              `json:"sd_blob_host"`
	KnownPieces    int                 `json:"known_blobs"`
}

// DownloadEvent identifies one download for analytics.
type DownloadEvent struct {
	DownloadID     string              `json:"download_id"`
	Name           string              `json:"name"`
	DescriptorHash ContentDescriptorID `json:"sd_hash"`
	ClaimID        string              `json:"claim_id,omitempty"`
}
