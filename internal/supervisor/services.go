package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"releasehub/internal/catalog"
	"releasehub/internal/logging"
	"releasehub/pkg/models"
)

// HTTPServer is the lifecycle of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type HTTPService struct {
	Server          HTTPServer
	ShutdownTimeout time.Duration
}

func NewHTTPService(srv HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{Server: srv, ShutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.ShutdownTimeout)
		defer cancel()
		if err := h.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// GRPCServer is the lifecycle of *grpc.Server.
type GRPCServer interface {
	Serve(net.Listener) error
	GracefulStop()
}

type GRPCService struct {
	Addr   string
	Server GRPCServer
}

func (g *GRPCService) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", g.Addr, err)
	}
	return g.serve(ctx, lis)
}

func (g *GRPCService) serve(ctx context.Context, lis net.Listener) error {
	l := logging.Component("grpc")
	l.Info().Str("addr", lis.Addr().String()).Msg("grpc listening")

	errCh := make(chan error, 1)
	go func() { errCh <- g.Server.Serve(lis) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		g.Server.GracefulStop()
		<-errCh
		return ctx.Err()
	}
}

func (g *GRPCService) String() string { return "grpc-server" }

// Syncer runs one catalog pass.
type Syncer interface {
	SyncCatalog(ctx context.Context) (*models.SyncReport, error)
}

// PeriodicSync runs a pass every Interval, and once at start when
// RunOnStart is set. Pass failures are logged and do not restart the
// service; the next tick simply tries again.
type PeriodicSync struct {
	Syncer     Syncer
	Interval   time.Duration
	RunOnStart bool
}

func (p *PeriodicSync) Serve(ctx context.Context) error {
	if p.Interval <= 0 {
		return fmt.Errorf("periodic sync: interval must be positive, got %s", p.Interval)
	}
	if p.RunOnStart {
		p.runOnce(ctx)
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

// runOnce leaves pass logging to the engine.
func (p *PeriodicSync) runOnce(ctx context.Context) {
	if _, err := p.Syncer.SyncCatalog(ctx); errors.Is(err, catalog.ErrSyncInProgress) {
		l := logging.Component("sync")
		l.Info().Msg("previous pass still running, skipping tick")
	}
}

func (p *PeriodicSync) String() string { return "periodic-sync" }
