package models

import (
	"time"
)

// Audit actions recorded in the audit_log table. The pipeline only ever
// emits ActionVirusDetected and ActionVirusScanPassed; the rest belong to
// the CRUD boundary.
const (
	ActionUpload          = "UPLOAD"
	ActionDownload        = "DOWNLOAD"
	ActionDelete          = "DELETE"
	ActionUpdate          = "UPDATE"
	ActionTag             = "TAG"
	ActionTagAdded        = "ADDTAG"
	ActionTagRemoved      = "REMOVETAG"
	ActionVirusDetected   = "VIRUS_DETECTED"
	ActionVirusScanPassed = "VIRUS_SCAN_PASSED"
)

// Share permission levels.
const (
	PermissionView    = "VIEW"
	PermissionComment = "COMMENT"
	PermissionEdit    = "EDIT"
)

type Document struct {
	ID              int64      `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	OwnerID         string     `json:"owner_id" db:"owner_id"`
	LatestVersionID *int64     `json:"latest_version_id,omitempty" db:"latest_version_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	Tags            []string   `json:"tags,omitempty" db:"-"`
	Versions        []*DocumentVersion `json:"versions,omitempty" db:"-"`
}

// DocumentVersion is one immutable upload of a document's content. Size,
// digest and extracted text start empty and are filled in asynchronously
// by the processing pipeline.
type DocumentVersion struct {
	ID            int64     `json:"id" db:"id"`
	DocumentID    int64     `json:"document_id" db:"document_id"`
	VersionNumber int64     `json:"version_number" db:"version_number"`
	StorageKey    string    `json:"storage_key" db:"storage_key"`
	UploadedBy    *string   `json:"uploaded_by,omitempty" db:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	FileSize      int64     `json:"file_size" db:"file_size"`
	ContentType   string    `json:"content_type" db:"content_type"`
	FileHash      string    `json:"file_hash" db:"file_hash"`
	OCRText       string    `json:"ocr_text,omitempty" db:"ocr_text"`
	Indexed       bool      `json:"indexed" db:"indexed"`
}

type AuditLogEntry struct {
	ID         int64          `json:"id" db:"id"`
	ActorID    *string        `json:"actor_id,omitempty" db:"actor_id"`
	Action     string         `json:"action" db:"action"`
	DocumentID *int64         `json:"document_id,omitempty" db:"document_id"`
	VersionID  *int64         `json:"version_id,omitempty" db:"version_id"`
	Timestamp  time.Time      `json:"timestamp" db:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty" db:"-"`
	IPAddress  *string        `json:"ip_address,omitempty" db:"ip_address"`
}

type Tag struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SharedDocument struct {
	ID         int64     `json:"id" db:"id"`
	DocumentID int64     `json:"document_id" db:"document_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Permission string    `json:"permission" db:"permission"`
	SharedAt   time.Time `json:"shared_at" db:"shared_at"`
}

type CreateDocumentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type PresignedUpload struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

type CreateDocumentResponse struct {
	DocumentID int64           `json:"document_id"`
	VersionID  int64           `json:"version_id"`
	Upload     PresignedUpload `json:"presigned_post"`
}

type ShareRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

type TagRequest struct {
	Name string `json:"name"`
}

type DownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
