//go:build !windows

package discovery

import (
	"context"
	"sync"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// Discover queries cfg.Service once and returns the matching detectors.
// The query runs for cfg.Timeout; ctx only prevents starting it.
func Discover(ctx context.Context, cfg Config, logger *zap.Logger) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(chan *mdns.ServiceEntry, 16)

	var found []Candidate
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			c, ok := candidateFromEntry(entry, cfg.Service, cfg.InstancePrefix)
			if !ok {
				continue
			}
			logger.Debug("mDNS detector candidate",
				zap.String("name", c.Name),
				zap.String("base_url", c.BaseURL),
			)
			found = append(found, c)
		}
	}()

	params := mdns.DefaultParams(cfg.Service)
	params.Timeout = cfg.Timeout
	params.Entries = entries
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	out := dedupe(found)
	logger.Info("mDNS discovery complete",
		zap.String("service", cfg.Service),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}
