package webserve

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/tracer"
)

// Option for web serve
type Option func(*Server)

// WithServiceName set serviceName function
func WithServiceName(serviceName string) Option {
	return func(s *Server) {
		s.ServiceName = serviceName
	}
}

// WithAddr set listen address function
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.Addr = addr
	}
}

// WithListener set listener function, it takes precedence over Addr
func WithListener(listener net.Listener) Option {
	return func(s *Server) {
		s.listener = listener
	}
}

// WithHandler set handler function
func WithHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.handler = handler
	}
}

// WithTracer set tracer function
func WithTracer(tracer *tracer.Server) Option {
	return func(s *Server) {
		s.Tracer = tracer
	}
}

// WithShutdown set an extra shutdown hook function
func WithShutdown(fn func(context.Context) error) Option {
	return func(s *Server) {
		s.shutdownHooks = append(s.shutdownHooks, fn)
	}
}

// WithReadTimeout set readTimeout function
func WithReadTimeout(readTimeout time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = readTimeout
	}
}

// WithWriterTimeout set writerTimeout function
func WithWriterTimeout(writerTimeout time.Duration) Option {
	return func(s *Server) {
		s.writerTimeout = writerTimeout
	}
}

// WithShutdownTimeout set shutdownTimeout function
func WithShutdownTimeout(shutdownTimeout time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = shutdownTimeout
	}
}

// WithMaxHeaderBytes set maxHeaderBytes function
func WithMaxHeaderBytes(maxHeaderBytes int) Option {
	return func(s *Server) {
		s.maxHeaderBytes = maxHeaderBytes
	}
}

// WithLogger set logger function
func WithLogger(logger glog.ILogger) Option {
	return func(s *Server) {
		s.Logger = logger.WithField("WebServe", "WebServe")
	}
}

// WithVersion set version function
func WithVersion(version string) Option {
	return func(s *Server) {
		s.Version = version
	}
}
