package domain

// Artifact is a stream materialized as a local file, together with the
// claim it was acquired through.
type Artifact struct {
	RowID             int64               `json:"rowid"`
	FileName          string              `json:"file_name"`
	DownloadDirectory string              `json:"download_directory"`
	DownloadPath      string              `json:"download_path"`
	MimeType          string              `json:"mime_type"`
	DescriptorHash    ContentDescriptorID `json:"sd_hash"`
	StreamHash        string              `json:"stream_hash"`
	StreamName        string              `json:"stream_name"`
	SuggestedFileName string              `json:"suggested_file_name"`
	Key               string              `json:"key,omitempty"`

	ClaimID        string `json:"claim_id,omitempty"`
	ClaimName      string `json:"claim_name,omitempty"`
	TxID           string `json:"txid,omitempty"`
	Nout           int    `json:"nout"`
	Outpoint       string `json:"outpoint,omitempty"`
	ChannelClaimID string `json:"channel_claim_id,omitempty"`
	ChannelName    string `json:"channel_name,omitempty"`

	Completed       bool         `json:"completed"`
	Stopped         bool         `json:"stopped"`
	PointsPaid      string       `json:"points_paid"`
	TotalBytes      int64        `json:"total_bytes"`
	WrittenBytes    int64        `json:"written_bytes"`
	PiecesCompleted int          `json:"blobs_completed"`
	PiecesInStream  int          `json:"blobs_in_stream"`
	Status          SessionState `json:"status"`
}

// ApplyClaim copies claim identity fields onto the artifact.
func (a *Artifact) ApplyClaim(c *ResolvedClaim) {
	if c == nil {
		return
	}
	a.ClaimID = c.ClaimID
	a.ClaimName = c.Name
	a.TxID = c.TxID
	a.Nout = c.Nout
	a.Outpoint = c.Outpoint()
	a.ChannelClaimID = c.ChannelClaimID
	a.ChannelName = c.ChannelName
}
