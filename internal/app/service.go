// Package app runs the vetbook process lifecycle: open the data file, seed the
// catalog, bootstrap the admin account and serve the HTTP API until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/danmuck/vetbook/internal/auth"
	"github.com/danmuck/vetbook/internal/booking"
	"github.com/danmuck/vetbook/internal/catalog"
	logs "github.com/danmuck/vetbook/internal/logging"
	"github.com/danmuck/vetbook/internal/server"
	"github.com/danmuck/vetbook/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	ErrMissingAddr     = errors.New("app: listen address is required")
	ErrMissingDataPath = errors.New("app: data path is required")
	ErrNotBootstrapped = errors.New("app: service not bootstrapped")
	ErrTLSPair         = errors.New("app: tls cert and key files must be set together")
)

// AdminBootstrap is the admin account ensured at startup. Empty email skips it.
type AdminBootstrap struct {
	Email    string
	Password string
	Name     string
}

// ServiceConfig configures the standalone vetbookd runtime.
type ServiceConfig struct {
	Name        string
	Addr        string
	CorsOrigins []string

	DataPath    string
	CatalogPath string
	SeedCatalog bool

	TokenSecret string
	TokenTTL    time.Duration
	AdminToken  string
	Admin       AdminBootstrap

	Location        *time.Location
	LeadTime        time.Duration
	MaxScheduleDays int

	// TLSCertFile and TLSKeyFile switch the listener to HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	ShutdownTimeout time.Duration
}

// DefaultServiceConfig returns runtime defaults; TokenSecret has none.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:            "vetbook",
		Addr:            ":8080",
		CorsOrigins:     []string{"http://localhost:3000"},
		DataPath:        "vetbook.db",
		SeedCatalog:     true,
		TokenTTL:        24 * time.Hour,
		Location:        DefaultLocation(),
		LeadTime:        2 * time.Hour,
		MaxScheduleDays: booking.DefaultMaxScheduleDays,
		ShutdownTimeout: 10 * time.Second,
	}
}

// DefaultLocation is the clinic timezone, falling back to UTC when tzdata
// is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Service owns the process-wide resources.
type Service struct {
	cfg ServiceConfig

	store    *store.Store
	clinic   *booking.Clinic
	accounts *auth.Accounts
	server   *server.Server
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = DefaultLocation()
	}
	return &Service{cfg: cfg}
}

// Run bootstraps and serves until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Bootstrap(); err != nil {
		_ = s.Close()
		return err
	}
	defer s.Close()
	return s.Serve(ctx)
}

// Open opens the data file and builds the clinic. It is enough for offline
// admin commands.
func (s *Service) Open() error {
	if s.clinic != nil {
		return nil
	}
	path := strings.TrimSpace(s.cfg.DataPath)
	if path == "" {
		return ErrMissingDataPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("app: create data dir: %w", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	s.store = st
	s.clinic = booking.NewClinic(st, booking.Options{
		Location:        s.cfg.Location,
		LeadTime:        s.cfg.LeadTime,
		MaxScheduleDays: s.cfg.MaxScheduleDays,
	})
	logs.Infof("app.Service.Open data=%q tz=%s", path, s.cfg.Location)
	return nil
}

// Bootstrap opens the store, seeds the catalog, ensures the admin account and
// builds the HTTP server.
func (s *Service) Bootstrap() error {
	if strings.TrimSpace(s.cfg.Addr) == "" {
		return ErrMissingAddr
	}
	if (s.cfg.TLSCertFile == "") != (s.cfg.TLSKeyFile == "") {
		return ErrTLSPair
	}
	if err := s.Open(); err != nil {
		return err
	}

	issuer, err := auth.NewTokenIssuer(s.cfg.TokenSecret, s.cfg.TokenTTL, nil)
	if err != nil {
		return err
	}
	s.accounts = auth.NewAccounts(s.store, issuer)

	if s.cfg.SeedCatalog {
		fx, err := catalog.Load(s.cfg.CatalogPath)
		if err != nil {
			return err
		}
		if _, err := catalog.Seed(s.clinic, fx); err != nil {
			return fmt.Errorf("app: seed catalog: %w", err)
		}
	}

	if email := strings.TrimSpace(s.cfg.Admin.Email); email != "" {
		u, created, err := s.accounts.EnsureAdmin(email, s.cfg.Admin.Password, s.cfg.Admin.Name)
		if err != nil {
			return fmt.Errorf("app: bootstrap admin: %w", err)
		}
		if created {
			logs.Infof("app.Service.Bootstrap admin created email=%q id=%s", u.Email, u.ID)
		}
	}

	validators := auth.Chain{s.accounts}
	if s.cfg.AdminToken != "" {
		validators = auth.Chain{auth.StaticToken{Token: s.cfg.AdminToken}, s.accounts}
	}
	s.server = server.New(s.cfg.Name, server.Deps{
		Clinic:      s.clinic,
		Accounts:    s.accounts,
		Validator:   validators,
		CorsOrigins: s.cfg.CorsOrigins,
	})
	logs.Infof("app.Service.Bootstrap ready name=%q addr=%q", s.cfg.Name, s.cfg.Addr)
	return nil
}

// Serve listens on the configured address until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves HTTP on ln and shuts down gracefully once ctx is done.
func (s *Service) ServeListener(ctx context.Context, ln net.Listener) error {
	if s.server == nil {
		_ = ln.Close()
		return ErrNotBootstrapped
	}
	httpServer := &http.Server{
		Handler:           s.server.HTTPRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if s.cfg.TLSCertFile != "" {
			logs.Infof("app.Service.Serve listening addr=%s tls=true", ln.Addr())
			err = httpServer.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			logs.Infof("app.Service.Serve listening addr=%s", ln.Addr())
			err = httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		logs.Infof("app.Service.Serve shutdown timeout=%s", s.cfg.ShutdownTimeout)
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Service) Clinic() *booking.Clinic {
	return s.clinic
}

func (s *Service) Accounts() *auth.Accounts {
	return s.accounts
}

// Close releases the data file.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	s.clinic = nil
	return err
}
