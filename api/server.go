package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltq/stationd/core/logger"
	"github.com/voltq/stationd/core/station"
	"github.com/voltq/stationd/core/storage"
)

// Server exposes the engine over HTTP. Identity and credential management
// live in front of this service; the authenticated user arrives in the
// X-User-ID header.
type Server struct {
	Engine *station.Engine
	Store  storage.Store
	Log    logger.Logger
}

// NewServer creates a Server.
func NewServer(engine *station.Engine, store storage.Store, log logger.Logger) *Server {
	return &Server{Engine: engine, Store: store, Log: log}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/v1/requests", func(r chi.Router) {
		r.Post("/", s.CreateRequest)
		r.Get("/queue", s.WaitingQueue)
		r.Get("/active", s.ActiveRequest)
		r.Get("/{requestID}", s.GetRequest)
		r.Patch("/{requestID}", s.ModifyRequest)
		r.Post("/{requestID}/cancel", s.CancelRequest)
		r.Post("/{requestID}/stop", s.StopRequest)
	})

	r.Post("/v1/piles/{pileID}/fault", s.ReportFault)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/piles", s.ListPiles)
		r.Post("/piles/setup", s.SetupPiles)
		r.Patch("/piles/{pileID}/status", s.UpdatePileStatus)
		r.Get("/piles/{pileID}/logs", s.GetPileLogs)
		r.Get("/queues", s.GetPileQueues)
		r.Get("/strategy", s.GetStrategy)
		r.Put("/strategy", s.SetStrategy)
	})

	r.Route("/v1/orders", func(r chi.Router) {
		r.Get("/", s.ListOrders)
		r.Get("/{orderID}", s.GetOrder)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
