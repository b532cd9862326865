package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mandelsoft/logging"

	"github.com/mandelsoft/concerns/pkg/service"
)

const DefaultShutdownTimeout = 10 * time.Second

// Server is an HTTP server usable as service.
type Server struct {
	*http.Server
	*http.ServeMux

	log             logging.Logger
	shutdownTimeout time.Duration

	lock     sync.Mutex
	listener net.Listener
	done     service.Syncher
}

var _ service.Service = (*Server)(nil)

// NewServer creates a server for the given port. Port 0 selects
// a free port, which is available via Address after the start.
// If def is set, the handlers registered with Register are served, also.
func NewServer(lctx logging.Context, port int, def bool, shutdownTimeout time.Duration) *Server {
	if lctx == nil {
		lctx = logging.DefaultContext()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	mux := http.NewServeMux()
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if def {
		mux.Handle("/", default_mux)
	}
	return &Server{
		Server:          server,
		ServeMux:        mux,
		log:             lctx.Logger(REALM).WithValues("port", port),
		shutdownTimeout: shutdownTimeout,
	}
}

// Start opens the listener and serves requests until the context
// is cancelled.
func (s *Server) Start(ctx context.Context) (service.Syncher, service.Syncher, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.done != nil {
		return nil, nil, fmt.Errorf("server already started")
	}
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return nil, nil, err
	}
	s.listener = l

	wg := &sync.WaitGroup{}
	wg.Add(1)
	s.done = service.Sync(wg)
	go func() {
		defer wg.Done()
		s.log.Info("serving on {{address}}", "address", l.Addr().String())
		s.done.SetError(s.serveContext(ctx, func() error { return s.Serve(l) }))
		s.log.Info("server stopped")
	}()
	return nil, s.done, nil
}

func (s *Server) Wait() error {
	s.lock.Lock()
	done := s.done
	s.lock.Unlock()
	if done == nil {
		return nil
	}
	return done.Wait()
}

// Address provides the address of a started server.
func (s *Server) Address() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) ListenAndServeContext(ctx context.Context) error {
	return s.ListenAndServeTLSContext(ctx, "", "")
}

func (s *Server) ListenAndServeTLSContext(ctx context.Context, certFile, keyFile string) error {
	return s.serveContext(ctx, func() error {
		if certFile != "" && keyFile != "" {
			return s.ListenAndServeTLS(certFile, keyFile)
		}
		return s.ListenAndServe()
	})
}

func (s *Server) serveContext(ctx context.Context, serve func() error) error {
	serverErr := make(chan error, 1)
	go func() {
		// listen errors are reported here, a shutdown always yields
		// http.ErrServerClosed.
		serverErr <- serve()
	}()
	var err error
	select {
	case <-ctx.Done():
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err = s.Shutdown(ctx)
	case err = <-serverErr:
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
