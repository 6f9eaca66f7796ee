package router

import (
	"net/http"

	"github.com/BerylCAtieno/doc-vault-api/internal/handlers"
	"github.com/BerylCAtieno/doc-vault-api/internal/middleware"
	"github.com/BerylCAtieno/doc-vault-api/internal/services"
	"github.com/BerylCAtieno/doc-vault-api/internal/utils"

	"github.com/gorilla/mux"
)

func NewRouter(docService services.DocumentService, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	// Document handler
	docHandler := handlers.NewDocumentHandler(docService, logger)

	// Routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Document endpoints
	api.HandleFunc("/documents", docHandler.CreateDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents", docHandler.ListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", docHandler.GetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", docHandler.DeleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/versions", docHandler.CreateVersion).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/audit", docHandler.ListAudit).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/tags", docHandler.AddTag).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/tags/{name}", docHandler.RemoveTag).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/share", docHandler.ShareDocument).Methods(http.MethodPost)

	// Version endpoints
	api.HandleFunc("/versions/{versionId}/complete", docHandler.CompleteUpload).Methods(http.MethodPost)
	api.HandleFunc("/versions/{versionId}/download", docHandler.DownloadVersion).Methods(http.MethodGet)

	return r
}
