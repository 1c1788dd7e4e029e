// Package daemon implements the dbaasd control plane: the database
// lifecycle engine, the region catalog, the control HTTP API, and the
// optional metrics listener.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dbaasd/dbaasd/internal/config"
	"github.com/dbaasd/dbaasd/internal/connect"
	"github.com/dbaasd/dbaasd/internal/db"
	"github.com/dbaasd/dbaasd/internal/secrets"
)

const shutdownTimeout = 5 * time.Second

// Service wires the store, the lifecycle engine, and the HTTP listeners.
type Service struct {
	cfg             config.Config
	store           *db.Store
	databaseManager *DatabaseManager
	regionService   *RegionService
	metrics         *Metrics
	controlListener net.Listener
	metricsListener net.Listener
	controlServer   *http.Server
	metricsServer   *http.Server
}

// Run opens the store, binds listeners, and serves until ctx is
// canceled.
func Run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	service, err := NewService(cfg, store, nil)
	if err != nil {
		_ = store.Close()
		return err
	}
	return service.Serve(ctx)
}

// NewService constructs a service with bound listeners. platform may be
// nil, in which case a client is built from the config.
func NewService(cfg config.Config, store *db.Store, platform connect.Client) (*Service, error) {
	var cipher *secrets.Cipher
	if strings.TrimSpace(cfg.EncryptionKey) != "" {
		var err error
		cipher, err = secrets.NewCipher(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
	} else {
		log.Printf("dbaasd: encryption key missing; activation and credential retrieval disabled")
	}
	if platform == nil {
		platform = &connect.APIClient{
			BaseURL: cfg.PlatformAPIURL,
			Token:   cfg.PlatformAPIToken,
		}
	}

	metrics := NewMetrics()
	databaseManager := NewDatabaseManager(store, platform, cipher, cfg.IDPrefix, cfg.IDRandomLength, log.Default()).
		WithMetrics(metrics)
	regionService := NewRegionService(store, log.Default())

	controlListener, err := net.Listen("tcp", cfg.ControlListen)
	if err != nil {
		return nil, fmt.Errorf("listen control %s: %w", cfg.ControlListen, err)
	}
	var metricsListener net.Listener
	if cfg.MetricsListen != "" {
		metricsListener, err = net.Listen("tcp", cfg.MetricsListen)
		if err != nil {
			_ = controlListener.Close()
			return nil, fmt.Errorf("listen metrics %s: %w", cfg.MetricsListen, err)
		}
	}

	controlMux := http.NewServeMux()
	controlMux.HandleFunc("/healthz", healthHandler)
	NewControlAPI(databaseManager, regionService, log.Default()).Register(controlMux)

	controlServer := &http.Server{
		Handler:           controlMux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	var metricsServer *http.Server
	if metricsListener != nil {
		metricsMux := http.NewServeMux()
		metricsMux.HandleFunc("/healthz", healthHandler)
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
		}
	}

	return &Service{
		cfg:             cfg,
		store:           store,
		databaseManager: databaseManager,
		regionService:   regionService,
		metrics:         metrics,
		controlListener: controlListener,
		metricsListener: metricsListener,
		controlServer:   controlServer,
		metricsServer:   metricsServer,
	}, nil
}

// Serve blocks until shutdown or a listener error occurs.
func (s *Service) Serve(ctx context.Context) error {
	log.Printf("dbaasd: listening on control=%s", s.cfg.ControlListen)
	servers := 1
	errCh := make(chan error, 2)
	go func() { errCh <- s.controlServer.Serve(s.controlListener) }()
	if s.metricsServer != nil {
		log.Printf("dbaasd: listening on metrics=%s", s.cfg.MetricsListen)
		servers = 2
		go func() { errCh <- s.metricsServer.Serve(s.metricsListener) }()
	}

	remaining := servers
	var serveErr error
	select {
	case <-ctx.Done():
		// graceful shutdown
	case err := <-errCh:
		remaining--
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	s.shutdown()
	for i := 0; i < remaining; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) && serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}

func (s *Service) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.controlServer.Shutdown(ctx)
	if s.metricsServer != nil {
		_ = s.metricsServer.Shutdown(ctx)
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, []string{http.MethodGet})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
