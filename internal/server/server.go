// Package server exposes the tracker over a small JSON API with a CSV
// download, for scripts and for browsers on the local machine.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/nixlim/tally/internal/export"
	"github.com/nixlim/tally/internal/state"
	"github.com/nixlim/tally/internal/tracker"
)

// Tracker is the subset of *tracker.Tracker the server drives.
type Tracker interface {
	State() tracker.State
	Refresh(ctx context.Context) error
	Log(ctx context.Context, kind state.Kind) (state.Event, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) (export.Blob, error)
}

type Server struct {
	tracker  Tracker
	addr     string
	srv      *http.Server
	listener net.Listener
}

func New(addr string, t Tracker) *Server {
	return &Server{tracker: t, addr: addr}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/log", s.handleLog)
	mux.HandleFunc("DELETE /api/events/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = lis
	s.srv = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: HTTP API stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
