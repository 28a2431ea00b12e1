package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/config"
	"github.com/HerbHall/mdpanel/internal/detector"
	"github.com/HerbHall/mdpanel/internal/refresh"
)

// ProbeReport is the result of one diagnostic refresh.
type ProbeReport struct {
	Detector string             `yaml:"detector"`
	Cycle    string             `yaml:"cycle"`
	Status   *detector.Status   `yaml:"status,omitempty"`
	Networks []detector.Network `yaml:"networks,omitempty"`
	Targets  []string           `yaml:"targets,omitempty"`
	Memory   *detector.Memory   `yaml:"memory,omitempty"`
	Errors   map[string]string  `yaml:"errors,omitempty"`
}

// Failed reports whether any fetch failed.
func (r ProbeReport) Failed() bool { return len(r.Errors) > 0 }

// Probe runs one refresh cycle plus a memory query against the configured
// detector.
func Probe(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ProbeReport, error) {
	client, err := detector.New(detector.Config{
		BaseURL:         cfg.Detector.URL,
		Timeout:         cfg.Detector.Timeout,
		IdentifierField: cfg.Detector.IdentifierField,
	})
	if err != nil {
		return ProbeReport{}, err
	}

	o := refresh.New(client, logger.Named("refresh"), nil).Refresh(ctx)
	rep := ProbeReport{
		Detector: client.BaseURL(),
		Cycle:    o.ID,
		Errors:   map[string]string{},
	}
	if o.Status.OK() {
		s := o.Status.Value
		rep.Status = &s
	} else {
		rep.Errors[refresh.SourceStatus] = o.Status.Err.Error()
	}
	if o.Networks.OK() {
		rep.Networks = o.Networks.Value
	} else {
		rep.Errors[refresh.SourceNetworks] = o.Networks.Err.Error()
	}
	if o.Targets.OK() {
		rep.Targets = o.Targets.Value
	} else {
		rep.Errors[refresh.SourceTargets] = o.Targets.Err.Error()
	}

	mem, err := client.Memory(ctx)
	if err != nil {
		rep.Errors["memory"] = err.Error()
	} else {
		rep.Memory = &mem
	}
	return rep, nil
}
