package handler

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter собирает маршруты ядра резервирования и рецензирования
func NewRouter(
	assetHandler *AssetHandler,
	reservationHandler *ReservationHandler,
	transcriptionHandler *TranscriptionHandler,
	ocrHandler *OCRHandler,
) chi.Router {
	r := chi.NewRouter()

	r.Route("/v1", func(r chi.Router) {
		r.Post("/assets", assetHandler.CreateAsset)

		r.Route("/assets/{uuid}", func(r chi.Router) {
			r.Get("/", assetHandler.GetAsset)
			r.Get("/image", assetHandler.GetImage)

			r.Post("/reserve", reservationHandler.Reserve)
			r.Post("/release", reservationHandler.Release)

			r.Post("/transcriptions", transcriptionHandler.Save)
			r.Get("/transcriptions", transcriptionHandler.History)
			r.Post("/rollback", transcriptionHandler.Rollback)
			r.Post("/rollforward", transcriptionHandler.Rollforward)

			r.Post("/ocr", ocrHandler.Transcribe)
		})

		r.Route("/transcriptions/{id}", func(r chi.Router) {
			r.Post("/submit", transcriptionHandler.Submit)
			r.Patch("/review", transcriptionHandler.Review)
		})
	})

	return r
}
