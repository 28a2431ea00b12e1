//go:build windows

package discovery

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Discover is unsupported on Windows where multicast DNS is not reliably
// available; configure detector.url instead.
func Discover(_ context.Context, _ Config, _ *zap.Logger) ([]Candidate, error) {
	return nil, errors.New("mDNS discovery is not supported on windows")
}
