package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/BerylCAtieno/doc-vault-api/internal/models"
	"github.com/BerylCAtieno/doc-vault-api/internal/services"
	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
	"github.com/gorilla/mux"
)

type DocumentHandler struct {
	service services.DocumentService
	logger  *utils.Logger
}

func NewDocumentHandler(service services.DocumentService, logger *utils.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger,
	}
}

// actor builds the audit identity from the request. X-Actor-ID is filled
// in by the gateway; absent means an anonymous or system call.
func actor(r *http.Request) services.Actor {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	return services.Actor{
		ID: r.Header.Get("X-Actor-ID"),
		IP: ip,
	}
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, utils.NewBadRequestError("Invalid JSON body"))
		return
	}

	resp, err := h.service.CreateDocument(r.Context(), actor(r), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *DocumentHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, utils.NewBadRequestError("Invalid JSON body"))
		return
	}

	resp, err := h.service.CreateVersion(r.Context(), actor(r), docID, req.Filename, req.ContentType)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *DocumentHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	versionID, ok := h.pathID(w, r, "versionId")
	if !ok {
		return
	}

	if err := h.service.CompleteUpload(r.Context(), versionID); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		ownerID = actor(r).ID
	}
	if ownerID == "" {
		h.respondError(w, utils.NewBadRequestError("owner_id is required"))
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(r.Context(), actor(r), id); err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	versionID, ok := h.pathID(w, r, "versionId")
	if !ok {
		return
	}

	resp, err := h.service.DownloadVersion(r.Context(), actor(r), versionID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, utils.NewBadRequestError("Invalid JSON body"))
		return
	}

	if err := h.service.AddTag(r.Context(), actor(r), docID, req.Name); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "tagged"})
}

func (h *DocumentHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	name := mux.Vars(r)["name"]
	if err := h.service.RemoveTag(r.Context(), actor(r), docID, name); err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ShareDocument(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, utils.NewBadRequestError("Invalid JSON body"))
		return
	}

	if err := h.service.ShareDocument(r.Context(), actor(r), docID, &req); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "shared"})
}

func (h *DocumentHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.service.ListAudit(r.Context(), docID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"audit": entries})
}

func (h *DocumentHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, utils.NewBadRequestError("Invalid "+name))
		return 0, false
	}
	return id, true
}

func (h *DocumentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *DocumentHandler) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch e := err.(type) {
	case *utils.AppError:
		status = e.StatusCode
		message = e.Message
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	h.logger.Error("Request error", "status", status, "error", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
