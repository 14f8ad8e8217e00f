package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tnidigan/userspace-resource-manager/internal/api"
	"github.com/tnidigan/userspace-resource-manager/internal/cc"
	"github.com/tnidigan/userspace-resource-manager/internal/domain"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/audit"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/cdm"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/registry"
	"github.com/tnidigan/userspace-resource-manager/internal/infra/signalregistry"
	"github.com/tnidigan/userspace-resource-manager/internal/ingress"
)

// Daemon is the core rtuned runtime. It wires together the
// Coordinator and its ambient collaborators: the audit log, the
// admin HTTP server, and the ingress listener.
type Daemon struct {
	Config      Config
	Coordinator *cc.Coordinator
	Audit       *audit.Log
	Server      *api.Server
	Ingress     *ingress.Listener

	cancel context.CancelFunc
}

// New creates and initializes a Daemon using the on-disk config (or
// defaults) plus the Resource/Signal Registries, Applier, and
// permission-derivation function a running system supplies. Registry
// population from YAML config stays out of scope here (spec.md
// Non-goals); callers build the registries via registry.Load /
// signalregistry.Load before calling New.
func New(resources *registry.Registry, signals *signalregistry.Registry, applier domain.Applier, permOf cdm.PermissionFunc) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, resources, signals, applier, permOf)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, resources *registry.Registry, signals *signalregistry.Registry, applier domain.Applier, permOf cdm.PermissionFunc) (*Daemon, error) {
	pulseDur, gcDur, deltaDur := cfg.Tunables.asDurations()
	ccCfg := cc.Config{
		MaxConcurrentRequests:  cfg.Tunables.MaxConcurrentRequests,
		MaxResourcesPerRequest: cfg.Tunables.MaxResourcesPerRequest,
		PulseDuration:          pulseDur,
		GCDuration:             gcDur,
		RateLimiterDelta:       deltaDur,
		PenaltyFactor:          cfg.Tunables.PenaltyFactor,
		RewardFactor:           cfg.Tunables.RewardFactor,
		GCBatchCap:             64,
		RequestQueueCapacity:   4096,
		TimerTick:              50 * time.Millisecond,
	}

	coord := cc.New(ccCfg, resources, signals, applier, permOf, processAlive)

	auditLog, err := audit.Open(rtunedHome())
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	coord.SetAuditLog(auditLog)

	srv := api.NewServer(coord)
	if cfg.Admin.EnableMetrics {
		srv.EnableMetrics()
	}

	ing := ingress.New(cfg.Ingress.SocketPath, cfg.Ingress.Workers, coord)

	return &Daemon{
		Config:      cfg,
		Coordinator: coord,
		Audit:       auditLog,
		Server:      srv,
		Ingress:     ing,
	}, nil
}

// Serve launches the Coordinator's dispatcher, the ingress listener,
// and the admin HTTP server, and blocks until ctx is cancelled or a
// termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Coordinator.Run(ctx)

	go func() {
		if err := d.Ingress.Serve(ctx); err != nil {
			log.Printf("[daemon] ingress error: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", d.Config.Admin.Host, d.Config.Admin.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Ingress.Close()
		cancel()
		_ = d.Audit.Close()
	}()

	log.Printf("[daemon] admin API on http://%s", addr)
	log.Printf("[daemon] ingress socket at %s", d.Config.Ingress.SocketPath)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Ingress != nil {
		_ = d.Ingress.Close()
	}
	if d.Audit != nil {
		_ = d.Audit.Close()
	}
}

// processAlive reports whether pid still exists, the /proc liveness
// check spec §4.8 names for the Pulse Monitor.
func processAlive(pid int) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}
