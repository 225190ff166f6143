// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/pinboard/internal/middleware"
	"github.com/tomtom215/pinboard/internal/models"
)

// AssetsPrefix is the URL prefix model files are served under. A device's
// model_path is appended to it.
const AssetsPrefix = "/shapes"

// Router builds the HTTP handler tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	assetsDir     string
}

// NewRouter returns a Router. assetsDir may be empty to disable model file
// serving.
func NewRouter(handler *Handler, mw *ChiMiddleware, assetsDir string) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw, assetsDir: assetsDir}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, &models.APIError{
			Type:    models.ErrorTypeNotFound,
			Message: "route not found",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, &models.APIError{
			Type:    models.ErrorTypeValidation,
			Message: "method not allowed",
		})
	})

	r.Route("/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", router.handler.DeviceList)
			r.Post("/", router.handler.DeviceCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", router.handler.DeviceGet)
				r.Patch("/", router.handler.DeviceUpdate)
				r.Delete("/", router.handler.DeviceDelete)

				r.Route("/pins", func(r chi.Router) {
					r.Post("/", router.handler.PinCreate)
					r.Patch("/", router.handler.PinUpdate)
					r.Put("/", router.handler.PinBulkUpdate)
					r.Get("/overview", router.handler.PinOverview)

					r.Route("/{pinID}", func(r chi.Router) {
						r.Get("/", router.handler.PinGet)
						r.Delete("/", router.handler.PinDelete)
						r.Post("/read", router.handler.PinRead)
						r.Post("/write", router.handler.PinWrite)
					})
				})
			})
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", router.handler.HistoryList)
			r.Get("/{deviceID}/items", router.handler.HistoryItems)
			r.Delete("/{deviceID}/items/{itemID}", router.handler.HistoryDeleteItem)
			r.Delete("/{deviceID}/items/{itemID}/records/{date}/changes/{time}", router.handler.HistoryRemoveChange)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	if router.assetsDir != "" {
		r.Handle(AssetsPrefix+"/*", http.StripPrefix(AssetsPrefix, noDirListing(http.FileServer(http.Dir(router.assetsDir)))))
	}

	return r
}

// noDirListing answers 404 for directory paths.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
