// Package server is the thin HTTP shell over the authentication core. It
// decodes requests, calls the services, and maps outcomes to status codes;
// all decisions live in the auth, risk and token packages.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/authcore-io/authcore/auth"
	"github.com/authcore-io/authcore/internal/config"
	"github.com/authcore-io/authcore/token"
)

// Deps are the constructed services the server exposes. Construction happens
// at process startup (cmd/server); the server owns no business logic.
type Deps struct {
	Auth   *auth.Service
	Agents *auth.AgentService
	Tokens *token.Manager
}

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config
	deps   Deps
	logger zerolog.Logger
}

func New(config config.Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.Auth == nil {
		return nil, fmt.Errorf("[Server New] auth service is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("[Server New] token manager is required")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: config,
		deps:   deps,
		logger: logger,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + resetColor
	} else {
		displayMethod = gray + paddedMethod + resetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
