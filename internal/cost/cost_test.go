package cost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"blobnet/internal/domain"
	"blobnet/test/testutil/fakes"
	"blobnet/test/testutil/fixtures"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type estimatorEnv struct {
	est      *Estimator
	fetcher  *fakes.Fetcher
	resolver *fakes.Resolver
	stream   *fixtures.Stream
}

func newEnv(t *testing.T, cfg Config) *estimatorEnv {
	t.Helper()
	s := fixtures.NewStream(t, "song", 1_500_000, 500_000)
	env := &estimatorEnv{
		fetcher:  fakes.NewFetcher(nil),
		resolver: fakes.NewResolver(),
		stream:   s,
	}
	env.fetcher.AddBlobs(s.Blobs)
	conv := &fakes.Converter{Rates: map[string]decimal.Decimal{"USD": dec("30")}}
	env.est = New(env.resolver, env.fetcher, conv, cfg, nil)
	return env
}

func TestEstimateFromSize(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		generous bool
		size     int64
		want     string
	}{
		{"one megabyte", 0.0001, false, 1_000_000, "0.0001"},
		{"half megabyte", 0.5, false, 500_000, "0.25"},
		{"empty", 0.5, false, 0, "0"},
		{"generous", 0.5, true, 10_000_000, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(nil, nil, nil, Config{DataRate: tt.rate, Generous: tt.generous}, nil)
			if got := e.EstimateFromSize(tt.size); !got.Equal(dec(tt.want)) {
				t.Errorf("EstimateFromSize(%d) = %s, want %s", tt.size, got, tt.want)
			}
		})
	}
}

func TestSetPolicy(t *testing.T) {
	e := New(nil, nil, nil, Config{DataRate: 1}, nil)
	e.SetPolicy(2, false)
	if got := e.EstimateFromSize(1_000_000); !got.Equal(dec("2")) {
		t.Errorf("after SetPolicy rate: %s, want 2", got)
	}
	e.SetPolicy(2, true)
	if got := e.EstimateFromSize(1_000_000); !got.IsZero() {
		t.Errorf("after SetPolicy generous: %s, want 0", got)
	}
}

func TestEstimateFromDescriptorHash(t *testing.T) {
	env := newEnv(t, Config{DataRate: 1, SearchTimeout: time.Second})
	ctx := context.Background()

	got, err := env.est.EstimateFromDescriptorHash(ctx, env.stream.DescriptorID, 0)
	if err != nil {
		t.Fatalf("EstimateFromDescriptorHash() error = %v", err)
	}
	if !got.Equal(dec("2")) {
		t.Errorf("EstimateFromDescriptorHash() = %s, want 2", got)
	}

	if _, err := env.est.EstimateFromDescriptorHash(ctx, "short", 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("invalid hash error = %v, want ErrInvalidInput", err)
	}
}

func TestEstimateFromDescriptorHash_TimeoutDegradesToZero(t *testing.T) {
	env := newEnv(t, Config{DataRate: 1})
	env.fetcher.SetDelay(time.Second)

	got, err := env.est.EstimateFromDescriptorHash(context.Background(), env.stream.DescriptorID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("EstimateFromDescriptorHash() error = %v, want degraded zero", err)
	}
	if !got.IsZero() {
		t.Errorf("EstimateFromDescriptorHash() = %s, want 0", got)
	}
}

func TestAddKeyFee(t *testing.T) {
	env := newEnv(t, Config{DataRate: 1})
	ctx := context.Background()

	est, err := env.est.AddKeyFee(ctx, nil, dec("1.5"))
	if err != nil || !est.Total.Equal(dec("1.5")) || !est.FeeCost.IsZero() {
		t.Errorf("AddKeyFee(nil) = %+v, %v", est, err)
	}

	est, err = env.est.AddKeyFee(ctx, fixtures.Fee("2", "USD"), dec("1.5"))
	if err != nil {
		t.Fatalf("AddKeyFee(USD) error = %v", err)
	}
	if !est.FeeCost.Equal(dec("60")) || !est.Total.Equal(dec("61.5")) {
		t.Errorf("AddKeyFee(USD) = %+v, want fee 60 total 61.5", est)
	}

	if _, err := env.est.AddKeyFee(ctx, fixtures.Fee("1", "EUR"), decimal.Zero); err == nil {
		t.Error("AddKeyFee(EUR) succeeded without a rate")
	}
}

func TestEstimateFromURI(t *testing.T) {
	ctx := context.Background()

	t.Run("free stream", func(t *testing.T) {
		env := newEnv(t, Config{DataRate: 1})
		env.resolver.Add("lbry://song", fixtures.StreamClaim("song", "aa", env.stream, nil))

		res, err := env.est.EstimateFromURI(ctx, "lbry://song")
		if err != nil {
			t.Fatalf("EstimateFromURI() error = %v", err)
		}
		if !res.Found || !res.Estimate.Total.Equal(dec("2")) {
			t.Errorf("EstimateFromURI() = %+v, want found total 2", res)
		}
	})

	t.Run("with fee", func(t *testing.T) {
		env := newEnv(t, Config{DataRate: 1})
		env.resolver.Add("lbry://song", fixtures.StreamClaim("song", "aa", env.stream, fixtures.Fee("0.1", "USD")))

		res, err := env.est.EstimateFromURI(ctx, "lbry://song")
		if err != nil {
			t.Fatalf("EstimateFromURI() error = %v", err)
		}
		if !res.Estimate.Total.Equal(dec("5")) {
			t.Errorf("total = %s, want 5", res.Estimate.Total)
		}
	})

	t.Run("unresolved is not zero", func(t *testing.T) {
		env := newEnv(t, Config{DataRate: 1})
		res, err := env.est.EstimateFromURI(ctx, "lbry://nothing")
		if err != nil {
			t.Fatalf("EstimateFromURI() error = %v", err)
		}
		if res.Found {
			t.Errorf("EstimateFromURI(unresolved) = %+v, want not found", res)
		}
	})

	t.Run("channel is not a stream", func(t *testing.T) {
		env := newEnv(t, Config{DataRate: 1})
		env.resolver.Add("lbry://@chan", &domain.ResolvedClaim{Name: "@chan", Value: fixtures.CertificateClaimValue()})
		res, err := env.est.EstimateFromURI(ctx, "lbry://@chan")
		if err != nil || res.Found {
			t.Errorf("EstimateFromURI(channel) = %+v, %v", res, err)
		}
	})

	t.Run("invalid locator", func(t *testing.T) {
		env := newEnv(t, Config{DataRate: 1})
		if _, err := env.est.EstimateFromURI(ctx, "lbry://"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("undecodable claim", func(t *testing.T) {
		env := newEnv(t, Config{DataRate: 1})
		env.resolver.Add("lbry://junk", &domain.ResolvedClaim{Name: "junk", Value: []byte("nope")})
		if _, err := env.est.EstimateFromURI(ctx, "lbry://junk"); !errors.Is(err, domain.ErrDecode) {
			t.Errorf("error = %v, want ErrDecode", err)
		}
	})

	t.Run("descriptor timeout keeps key fee", func(t *testing.T) {
		env := newEnv(t, Config{DataRate: 1, SearchTimeout: 20 * time.Millisecond})
		env.fetcher.SetDelay(time.Second)
		env.resolver.Add("lbry://song", fixtures.StreamClaim("song", "aa", env.stream, fixtures.Fee("1", "LBC")))

		res, err := env.est.EstimateFromURI(ctx, "lbry://song")
		if err != nil {
			t.Fatalf("EstimateFromURI() error = %v", err)
		}
		if !res.Found || !res.Estimate.DataCost.IsZero() || !res.Estimate.Total.Equal(dec("1")) {
			t.Errorf("EstimateFromURI() = %+v, want data 0 total 1", res)
		}
		if !res.Estimate.DataCostUnknown {
			t.Error("DataCostUnknown not set on a degraded estimate")
		}
	})
}

func TestEstimateFromURI_Rounding(t *testing.T) {
	env := newEnv(t, Config{DataRate: 0.0000123456789})
	env.resolver.Add("lbry://song", fixtures.StreamClaim("song", "aa", env.stream, nil))
	ctx := context.Background()

	first, err := env.est.EstimateFromURI(ctx, "lbry://song")
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.est.EstimateFromURI(ctx, "lbry://song")
	if err != nil {
		t.Fatal(err)
	}

	if !first.Estimate.Total.Equal(second.Estimate.Total) {
		t.Errorf("estimates differ: %s vs %s", first.Estimate.Total, second.Estimate.Total)
	}
	if !first.Estimate.Total.Equal(first.Estimate.Total.Round(domain.CostPrecision)) {
		t.Errorf("total %s not rounded to %d places", first.Estimate.Total, domain.CostPrecision)
	}
	if !first.Estimate.Total.Equal(dec("0.00002")) {
		t.Errorf("total = %s, want 0.00002", first.Estimate.Total)
	}
}

func TestEstimateUsingKnownSize(t *testing.T) {
	env := newEnv(t, Config{DataRate: 1})
	env.resolver.Add("lbry://song", fixtures.StreamClaim("song", "aa", env.stream, fixtures.Fee("1", "USD")))
	ctx := context.Background()

	res, err := env.est.EstimateUsingKnownSize(ctx, "lbry://song", 3_000_000)
	if err != nil {
		t.Fatalf("EstimateUsingKnownSize() error = %v", err)
	}
	if !res.Found || !res.Estimate.Total.Equal(dec("33")) {
		t.Errorf("EstimateUsingKnownSize() = %+v, want total 33", res)
	}
	if env.fetcher.Calls(env.stream.DescriptorID.PieceID()) != 0 {
		t.Error("descriptor fetched although the size was known")
	}

	res, err = env.est.EstimateUsingKnownSize(ctx, "lbry://nothing", 10)
	if err != nil || res.Found {
		t.Errorf("EstimateUsingKnownSize(unresolved) = %+v, %v", res, err)
	}
}
