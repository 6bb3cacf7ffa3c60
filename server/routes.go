package server

func (s *Server) initRoutes() {
	api := s.APIMiddleware()

	s.RegisterRouteFunc("POST /v1/auth/authenticate", ChainMiddleware(s.AuthenticateHandler(), api...))
	s.RegisterRouteFunc("POST /v1/auth/agent", ChainMiddleware(s.AgentAuthenticateHandler(), api...))

	s.RegisterRouteFunc("POST /v1/token/refresh", ChainMiddleware(s.RefreshHandler(), api...))
	s.RegisterRouteFunc("POST /v1/token/revoke", ChainMiddleware(s.RevokeHandler(), api...))
	s.RegisterRouteFunc("POST /v1/token/introspect", ChainMiddleware(s.IntrospectHandler(), api...))
	s.RegisterRouteFunc("GET /.well-known/jwks.json", ChainMiddleware(s.JWKSHandler(), api...))

	s.RegisterRouteFunc("GET /healthz", s.HealthHandler())
}
