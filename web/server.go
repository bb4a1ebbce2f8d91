// Package web serves a models.Store over a JSON HTTP API.
package web

import (
	"notevault/models"
	"notevault/web/api"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// DefaultAddress is where the server listens when none is configured.
const DefaultAddress = "localhost:8000"

// NewServer creates and configures the RWeb server over store.
func NewServer(store *models.Store, opts rweb.ServerOptions) *rweb.Server {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	s := rweb.NewServer(opts)

	s.Use(rweb.RequestInfo)
	s.Use(SecurityHeadersMiddleware)
	s.Use(LoggingMiddleware)

	setupRoutes(s, api.NewNotes(store))
	return s
}

// Run starts the server and blocks.
func Run(s *rweb.Server, address string) error {
	logger.Info("notevault API starting", "address", address)
	return s.Run()
}
