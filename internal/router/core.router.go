package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	httphandler "github.com/Farkhat1984/leema-react-sub002/internal/handler/http"
	wshandler "github.com/Farkhat1984/leema-react-sub002/internal/handler/ws"
	"github.com/Farkhat1984/leema-react-sub002/pkg/authctx"
)

// SetupRoutes configures the HTTP routes for the sync service.
func SetupRoutes(
	r chi.Router,
	ih *httphandler.IntegrationHandler,
	oh *httphandler.OrderHandler,
	wsHandler *wshandler.WSHandler,
	auth *authctx.Middleware,
) chi.Router {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Provider callbacks come in unauthenticated; everything else is
		// scoped to the shop on the token.
		r.Post("/callbacks/sms", oh.SMSDeliveryCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireShop)

			r.Route("/integrations", func(r chi.Router) {
				r.Post("/", ih.Create)
				r.Get("/", ih.List)
				r.Get("/{id}", ih.Get)
				r.Put("/{id}", ih.Update)
				r.Delete("/{id}", ih.Delete)
				r.Post("/{id}/sync", ih.TriggerSync)
				r.Get("/{id}/orders", ih.ListOrders)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/{id}", oh.Get)
				r.Post("/{id}/status", oh.UpdateStatus)
				r.Get("/{id}/notifications", oh.ListNotifications)
				r.Post("/{id}/notifications", oh.SendManual)
			})

			r.Post("/notifications/{id}/retry", oh.RetryNotification)

			r.Get("/ws", wsHandler.HandleDashboard)
		})
	})
	return r
}
