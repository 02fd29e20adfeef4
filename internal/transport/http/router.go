package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmw "github.com/parley-chat/server/internal/transport/http/middleware"
	"github.com/parley-chat/server/internal/transport/ws"
)

func NewRouter(h *Handler, verifier httpmw.TokenVerifier, wsServer *ws.Server, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.MetricsMiddleware)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// WS endpoint does its own token check (token travels in the query)
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	r.Route("/api", func(api chi.Router) {
		api.Post("/register", h.Register)
		api.Post("/login", h.Login)

		api.Group(func(pr chi.Router) {
			pr.Use(httpmw.AuthMiddleware(verifier))
			pr.Use(middlewareChi.Timeout(30 * time.Second))

			pr.Post("/logout", h.Logout)
			pr.Get("/me", h.Me)
			pr.Put("/me", h.UpdateProfile)

			pr.Get("/contacts", h.ListContacts)
			pr.Post("/contacts", h.AddContact)

			pr.Route("/directs/{userId}", func(d chi.Router) {
				d.Get("/", h.ListDirects)
				d.Post("/", h.SendDirect)
			})

			pr.Route("/rooms", func(rm chi.Router) {
				rm.Post("/", h.CreateRoom)
				rm.Get("/", h.ListRooms)
				rm.Get("/{id}", h.GetRoom)
				rm.Post("/{id}/join", h.JoinRoom)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
