package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes wires the six routes spec.md §6 names. The teacher's router
// carries several dozen additional routes (TUI control, MCP, formatter,
// LSP, command execution, client-tool registration) that have no
// SPEC_FULL.md component to serve them and are dropped, not adapted.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.deleteSession)
			r.Get("/messages", s.getMessages)
			r.Post("/prompt", s.postPrompt)
		})
	})

	r.Get("/events", s.sessionEvents)
}
