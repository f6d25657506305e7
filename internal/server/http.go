package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/avdeyev/schoolhub-server/internal/model"
)

var _ model.Server = (*HTTPServer)(nil)

// HTTPServer runs the REST API on a listener provided by a SecurityLayer.
type HTTPServer struct {
	srv  *http.Server
	addr string
}

// NewHTTPServer creates an HTTP server for the given handler and address.
func NewHTTPServer(h http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		srv:  &http.Server{Handler: h},
		addr: addr,
	}
}

// Start listens via the security layer and serves until Stop is called.
func (s *HTTPServer) Start(securityLayer model.SecurityLayer) error {
	listener, err := securityLayer.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Address returns the configured listen address.
func (s *HTTPServer) Address() string {
	return s.addr
}
