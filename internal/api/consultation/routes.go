package consultation

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers consultation routes. Every route except the event
// stream runs under the request timeout.
func RegisterRoutes(r chi.Router, h *Handler, timeout time.Duration) {
	r.Route("/api/v1/consultations", func(r chi.Router) {
		r.Get("/{consultationID}/events", h.StreamEvents)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(timeout))

			r.Post("/", h.StartConsultation)
			r.Get("/", h.ListConsultations)

			r.Route("/{consultationID}", func(r chi.Router) {
				r.Get("/", h.GetConsultation)
				r.Delete("/", h.CloseConsultation)
				r.Post("/messages", h.SendMessage)
				r.Post("/structured", h.SubmitStructured)
				r.Post("/force-next-stage", h.ForceNextStage)
				r.Get("/summary", h.GetSummary)
				r.Post("/extract-template", h.ExtractTemplate)
				r.Post("/templates", h.SaveTemplate)
			})
		})
	})
}
