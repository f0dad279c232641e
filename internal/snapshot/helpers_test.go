package snapshot

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func miniredisRun(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

func zerologNop() zerolog.Logger { return zerolog.Nop() }
