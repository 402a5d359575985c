package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Session interface {
	Cart
	IdentityObserver
}

// NewRouter mounts the cart API for one cart session.
func NewRouter(sess Session, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	cartHandler := NewCartHandler(sess, requestTimeout, logger)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", cartHandler.health)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(IdentityMiddleware(sess))
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
		r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		r.Post("/checkout", cartHandler.Checkout)
	})

	return r
}
