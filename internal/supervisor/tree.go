// Package supervisor runs the long-lived parts of the api server under a
// suture tree: the HTTP API, the gRPC calendar, the TCP feed and the
// periodic catalog sync. A crash in one is restarted without taking the
// others down.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"releasehub/internal/logging"
)

type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree has two layers: api (HTTP, gRPC, feed) and sync (periodic passes).
type Tree struct {
	root *suture.Supervisor
	api  *suture.Supervisor
	sync *suture.Supervisor
}

func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = logEvent

	t := &Tree{
		root: suture.New("releasehub", rootSpec),
		api:  suture.New("api-layer", spec),
		sync: suture.New("sync-layer", spec),
	}
	t.root.Add(t.api)
	t.root.Add(t.sync)
	return t
}

func logEvent(e suture.Event) {
	log := logging.Component("supervisor")
	ev := log.Warn()
	if e.Type() == suture.EventTypeResume {
		ev = log.Info()
	}
	ev.Fields(e.Map()).Msg(e.String())
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken  { return t.api.Add(svc) }
func (t *Tree) AddSyncService(svc suture.Service) suture.ServiceToken { return t.sync.Add(svc) }

// Serve blocks until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error { return t.root.Serve(ctx) }

func (t *Tree) ServeBackground(ctx context.Context) <-chan error { return t.root.ServeBackground(ctx) }

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
