// Package webserve runs an http.Handler until its context ends, then drains
// requests and stops the tracer.
package webserve

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/tracer"
	"github.com/shirou/gopsutil/v3/host"
)

type Server struct {
	ServiceName     string
	Addr            string
	Version         string
	Tracer          *tracer.Server
	Logger          glog.ILoggerEntry
	handler         http.Handler
	listener        net.Listener
	httpServer      *http.Server
	shutdownHooks   []func(context.Context) error
	readTimeout     time.Duration
	writerTimeout   time.Duration
	shutdownTimeout time.Duration
	maxHeaderBytes  int
	pId             int
}

func New(opts ...Option) *Server {
	var server = &Server{
		ServiceName:     "demo",
		Addr:            ":80",
		Version:         tracer.Version(),
		handler:         http.NotFoundHandler(),
		pId:             os.Getpid(),
		writerTimeout:   time.Second * 120,
		readTimeout:     time.Second * 120,
		shutdownTimeout: time.Second * 5,
		maxHeaderBytes:  1 << 20,
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Logger == nil {
		server.Logger = glog.New().WithField("WebServe", "WebServe")
	}
	return server
}

func (s *Server) AddTrace(tracer *tracer.Server) *Server {
	s.Tracer = tracer
	return s
}

func (s *Server) AddHandler(handler http.Handler) *Server {
	s.handler = handler
	return s
}

// Run serves until ctx is done or the listener fails, then stops the server.
// It returns the serve error, if any, joined with the shutdown errors.
func (s *Server) Run(ctx context.Context) error {
	ln := s.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", s.Addr); err != nil {
			return err
		}
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writerTimeout,
		MaxHeaderBytes:    s.maxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.printLog(ctx, ln.Addr())

	var serveErr error
	select {
	case <-ctx.Done():
		s.Logger.Info("receive a signal, " + context.Cause(ctx).Error())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}
	return errors.Join(serveErr, s.stop())
}

func (s *Server) stop() error {
	s.Logger.Info("Server is stopping")
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Error("shutdown http webserve error", err.Error())
		errs = append(errs, err)
	}
	if s.Tracer != nil {
		if err := s.Tracer.Stop(ctx); err != nil {
			s.Logger.Error("stop tracer error", err.Error())
			errs = append(errs, err)
		}
	}
	for _, hook := range s.shutdownHooks {
		if err := hook(ctx); err != nil {
			s.Logger.Error("shutdown hook error", err.Error())
			errs = append(errs, err)
		}
	}
	s.Logger.Info("Server is stopped.")
	return errors.Join(errs...)
}

func (s *Server) printLog(ctx context.Context, addr net.Addr) {
	if info, err := host.InfoWithContext(ctx); err == nil {
		s.Logger.Infof("hostName: %s, os: %s, platform: %s %s, kernel: %s %s, hostId: %s",
			info.Hostname, info.OS, info.Platform, info.PlatformVersion,
			info.KernelVersion, info.KernelArch, info.HostID)
	}
	s.Logger.Infof("Welcome to %s, version %s, pid %d, listening on %s",
		s.ServiceName, s.Version, s.pId, addr.String())
	s.Logger.Info("Server is Started.")
}
