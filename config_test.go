package twopence_test

import (
	"testing"
	"time"

	"github.com/frankenmichl/twopence"
)

func TestDefaultConfig_MatchesLegacyDefaults(t *testing.T) {
	if twopence.DefaultConfig.Version != twopence.VersionLegacy {
		t.Fatalf("version = %v, want VersionLegacy", twopence.DefaultConfig.Version)
	}
	if twopence.DefaultConfig.LinkTimeout != twopence.DefaultLinkTimeout {
		t.Fatalf("link timeout = %v, want %v", twopence.DefaultConfig.LinkTimeout, twopence.DefaultLinkTimeout)
	}
	if twopence.DefaultConfig.MTU != twopence.DefaultMTU {
		t.Fatalf("MTU = %d, want %d", twopence.DefaultConfig.MTU, twopence.DefaultMTU)
	}
}

func TestNewConfig_AppliesOptionsInOrder(t *testing.T) {
	c := twopence.NewConfig(
		twopence.WithVersion(twopence.VersionMultiplex),
		twopence.WithLinkTimeout(5*time.Second),
		twopence.WithMTU(4096),
	)
	if c.Version != twopence.VersionMultiplex {
		t.Fatalf("version = %v, want VersionMultiplex", c.Version)
	}
	if c.LinkTimeout != 5*time.Second {
		t.Fatalf("link timeout = %v, want 5s", c.LinkTimeout)
	}
	if c.MTU != 4096 {
		t.Fatalf("MTU = %d, want 4096", c.MTU)
	}
}

func TestWithMTU_ClampsAboveMaxFrameLength(t *testing.T) {
	c := twopence.NewConfig(twopence.WithMTU(1 << 20))
	if c.MTU != twopence.MaxFrameLength {
		t.Fatalf("MTU = %d, want clamped to %d", c.MTU, twopence.MaxFrameLength)
	}
}
