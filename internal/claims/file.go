// Package claims resolves content locators into claims.
package claims

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"blobnet/internal/domain"
	"blobnet/internal/logger"
)

var log = logger.Default()

// SetLogger sets the package logger.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "claims")
	}
}

// claimsFile is the on-disk layout of a claims file.
type claimsFile struct {
	Claims []claimEntry `yaml:"claims"`
}

type claimEntry struct {
	domain.ResolvedClaim `yaml:",inline"`

	Amount string `yaml:"amount"`

	// Value is the claim value written as YAML; it is stored as JSON.
	Value map[string]any `yaml:"value"`

	// ValueHex carries an already serialized value.
	ValueHex string `yaml:"value_hex"`
}

func (e claimEntry) toClaim() (*domain.ResolvedClaim, error) {
	c := e.ResolvedClaim

	if e.Amount != "" {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", e.Amount, err)
		}
		c.Amount = amount
	}

	switch {
	case e.ValueHex != "":
		raw, err := hex.DecodeString(e.ValueHex)
		if err != nil {
			return nil, fmt.Errorf("value_hex: %w", err)
		}
		c.Value = raw
	case e.Value != nil:
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		c.Value = raw
	}
	return &c, nil
}

// FileResolver resolves locators against a YAML file of known claims.
type FileResolver struct {
	path string

	mu     sync.RWMutex
	claims []*domain.ResolvedClaim
}

// NewFileResolver loads the claims file at path.
func NewFileResolver(path string) (*FileResolver, error) {
	r := &FileResolver{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStaticResolver resolves against an in-memory claim list.
func NewStaticResolver(claims ...*domain.ResolvedClaim) *FileResolver {
	return &FileResolver{claims: claims}
}

// Reload re-reads the claims file.
func (r *FileResolver) Reload() error {
	if r.path == "" {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read claims file: %w", err)
	}

	var f claimsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse claims file %s: %w", r.path, err)
	}

	claims := make([]*domain.ResolvedClaim, 0, len(f.Claims))
	for i, e := range f.Claims {
		c, err := e.toClaim()
		if err != nil {
			return fmt.Errorf("claims file %s entry %d: %w", r.path, i, err)
		}
		claims = append(claims, c)
	}

	r.mu.Lock()
	r.claims = claims
	r.mu.Unlock()

	log.Debug("claims loaded", "path", r.path, "count", len(claims))
	return nil
}

// Resolve implements domain.ClaimResolver.
func (r *FileResolver) Resolve(ctx context.Context, uris ...string) (map[string]domain.ResolveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]domain.ResolveResult, len(uris))
	for _, uri := range uris {
		results[uri] = r.resolveOne(uri)
	}
	return results, nil
}

func (r *FileResolver) resolveOne(uri string) domain.ResolveResult {
	loc, err := domain.ParseLocator(uri)
	if err != nil {
		return domain.ResolveResult{Err: err}
	}

	var certificate *domain.ResolvedClaim
	name := loc.Name
	if loc.IsChannel() {
		certificate = r.match(loc.Name, loc.ClaimID, loc.ClaimSequence, loc.BidPosition, "")
		if certificate == nil {
			return domain.ResolveResult{Err: fmt.Errorf("%w: %s", domain.ErrNotFound, loc)}
		}
		if loc.Path == "" {
			return domain.ResolveResult{Claim: certificate}
		}
		name = loc.Path
	}

	var claim *domain.ResolvedClaim
	if certificate != nil {
		claim = r.match(name, "", 0, 0, certificate.ClaimID)
	} else {
		claim = r.match(name, loc.ClaimID, loc.ClaimSequence, loc.BidPosition, "")
	}
	if claim == nil {
		return domain.ResolveResult{Err: fmt.Errorf("%w: %s", domain.ErrNotFound, loc)}
	}

	if certificate == nil && claim.ChannelClaimID != "" {
		certificate = r.byClaimID(claim.ChannelClaimID)
	}
	return domain.ResolveResult{Claim: claim, Certificate: certificate}
}

// match picks a claim for name. A claim id prefix selects directly;
// otherwise candidates are ordered by height for sequences and by amount
// for bid positions, and the winning bid is the default.
func (r *FileResolver) match(name, claimID string, sequence, bidPosition int, channelClaimID string) *domain.ResolvedClaim {
	var candidates []*domain.ResolvedClaim
	for _, c := range r.claims {
		if c.Name != name {
			continue
		}
		if channelClaimID != "" && c.ChannelClaimID != channelClaimID {
			continue
		}
		if claimID != "" && !strings.HasPrefix(c.ClaimID, claimID) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}

	if sequence > 0 {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Height < candidates[j].Height })
		if sequence > len(candidates) {
			return nil
		}
		return candidates[sequence-1]
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Amount.GreaterThan(candidates[j].Amount) })
	if bidPosition > 0 {
		if bidPosition > len(candidates) {
			return nil
		}
		return candidates[bidPosition-1]
	}
	return candidates[0]
}

func (r *FileResolver) byClaimID(id string) *domain.ResolvedClaim {
	for _, c := range r.claims {
		if c.ClaimID == id {
			return c
		}
	}
	return nil
}
