package domain

// PeerProbeResult is the outcome of probing one peer for one piece.
type PeerProbeResult struct {
	Peer      string
	Reachable bool
}

// AvailabilityReport summarizes a probe of every peer known to hold a piece.
type AvailabilityReport struct {
	IsAvailable      bool     `json:"is_available"`
	ReachablePeers   []string `json:"reachable_peers"`
	UnreachablePeers []string `json:"unreachable_peers"`
	Error            string   `json:"error,omitempty"`
}

// NewAvailabilityReport partitions probe results into reachable and unreachable
// peers. errMsg is carried through unchanged.
func NewAvailabilityReport(results []PeerProbeResult, errMsg string) AvailabilityReport {
	report := AvailabilityReport{
		ReachablePeers:   []string{},
		UnreachablePeers: []string{},
		Error:            errMsg,
	}
	for _, r := range results {
		if r.Reachable {
			report.ReachablePeers = append(report.ReachablePeers, r.Peer)
		} else {
			report.UnreachablePeers = append(report.UnreachablePeers, r.Peer)
		}
	}
	report.IsAvailable = len(report.ReachablePeers) > 0
	return report
}

// StreamAvailability is the staged diagnosis of whether a locator can be
// downloaded right now. Fields for stages that were not reached keep their
// zero values.
type StreamAvailability struct {
	IsAvailable bool `json:"is_available"`
	DidResolve  bool `json:"did_resolve"`
	DidDecode   bool `json:"did_decode"`
	IsStream    bool `json:"is_stream"`

	// NumPiecesInStream is nil until the descriptor has been fetched.
	NumPiecesInStream *int `json:"num_blobs_in_stream"`

	DescriptorHash         string              `json:"sd_hash,omitempty"`
	DescriptorAvailability *AvailabilityReport `json:"sd_blob_availability,omitempty"`
	HeadPieceHash          string              `json:"head_blob_hash,omitempty"`
	HeadPieceAvailability  *AvailabilityReport `json:"head_blob_availability,omitempty"`

	UseUPnP           bool `json:"use_upnp"`
	UPnPRedirectIsSet bool `json:"upnp_redirect_is_set"`

	Error string `json:"error,omitempty"`
}
