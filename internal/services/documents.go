package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BerylCAtieno/doc-vault-api/internal/audit"
	"github.com/BerylCAtieno/doc-vault-api/internal/config"
	"github.com/BerylCAtieno/doc-vault-api/internal/models"
	"github.com/BerylCAtieno/doc-vault-api/internal/repository"
	"github.com/BerylCAtieno/doc-vault-api/internal/storage"
	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
)

// Actor identifies who triggered a request, for audit purposes only.
// Authentication lives elsewhere; an empty ID means a system action.
type Actor struct {
	ID string
	IP string
}

func (a Actor) idPtr() *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) ipPtr() *string {
	if a.IP == "" {
		return nil
	}
	ip := a.IP
	return &ip
}

// JobPublisher enqueues a pipeline job for a version.
type JobPublisher interface {
	Publish(ctx context.Context, versionID int64) error
}

type DocumentService interface {
	CreateDocument(ctx context.Context, actor Actor, req *models.CreateDocumentRequest) (*models.CreateDocumentResponse, error)
	CreateVersion(ctx context.Context, actor Actor, docID int64, filename, contentType string) (*models.CreateDocumentResponse, error)
	CompleteUpload(ctx context.Context, versionID int64) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, actor Actor, id int64) error
	DownloadVersion(ctx context.Context, actor Actor, versionID int64) (*models.DownloadResponse, error)
	AddTag(ctx context.Context, actor Actor, docID int64, name string) error
	RemoveTag(ctx context.Context, actor Actor, docID int64, name string) error
	ShareDocument(ctx context.Context, actor Actor, docID int64, req *models.ShareRequest) error
	ListAudit(ctx context.Context, docID int64) ([]*models.AuditLogEntry, error)
}

type documentService struct {
	repo    repository.Repository
	storage storage.Storage
	jobs    JobPublisher
	audit   *audit.Recorder
	cfg     *config.Config
	logger  *utils.Logger
}

func NewService(
	repo repository.Repository,
	store storage.Storage,
	jobs JobPublisher,
	recorder *audit.Recorder,
	cfg *config.Config,
	logger *utils.Logger,
) DocumentService {
	return &documentService{
		repo:    repo,
		storage: store,
		jobs:    jobs,
		audit:   recorder,
		cfg:     cfg,
		logger:  logger,
	}
}

// CreateDocument registers document metadata, creates the first shadow
// version record, and returns a presigned POST so the client uploads the
// bytes straight to the bucket.
func (s *documentService) CreateDocument(ctx context.Context, actor Actor, req *models.CreateDocumentRequest) (*models.CreateDocumentResponse, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Filename) == "" {
		return nil, utils.NewBadRequestError("title and filename are required")
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &models.Document{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     actor.ID,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		s.logger.Error("Failed to create document", "error", err)
		return nil, utils.NewInternalError("Failed to create document")
	}

	return s.registerVersion(ctx, actor, doc.ID, 1, req.Filename, contentType)
}

// CreateVersion registers the next version of an existing document.
func (s *documentService) CreateVersion(ctx context.Context, actor Actor, docID int64, filename, contentType string) (*models.CreateDocumentResponse, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, utils.NewBadRequestError("filename is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := s.repo.GetDocument(ctx, docID)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "document_id", docID)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found")
	}

	number, err := s.repo.NextVersionNumber(ctx, docID)
	if err != nil {
		s.logger.Error("Failed to compute version number", "error", err, "document_id", docID)
		return nil, utils.NewInternalError("Failed to create version")
	}

	return s.registerVersion(ctx, actor, docID, number, filename, contentType)
}

func (s *documentService) registerVersion(ctx context.Context, actor Actor, docID, number int64, filename, contentType string) (*models.CreateDocumentResponse, error) {
	key := fmt.Sprintf("documents/%d/v/%d/%s", docID, number, filename)

	url, fields, err := s.storage.PresignUploadPost(ctx, key, contentType, s.cfg.PresignExpiry, s.cfg.MaxFileSize)
	if err != nil {
		s.logger.Error("Failed to presign upload", "error", err, "key", key)
		return nil, utils.NewInternalError("Failed to prepare upload")
	}

	// Shadow version record: zero size and empty digest until the client
	// finishes the upload and the pipeline fills in the rest.
	version := &models.DocumentVersion{
		DocumentID:    docID,
		VersionNumber: number,
		StorageKey:    key,
		UploadedBy:    actor.idPtr(),
		ContentType:   contentType,
	}
	if err := s.repo.CreateVersion(ctx, version); err != nil {
		s.logger.Error("Failed to create version", "error", err, "document_id", docID)
		return nil, utils.NewInternalError("Failed to create version")
	}

	if err := s.repo.SetLatestVersion(ctx, docID, version.ID); err != nil {
		s.logger.Error("Failed to set latest version", "error", err, "document_id", docID)
		return nil, utils.NewInternalError("Failed to update document")
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActorID:    actor.idPtr(),
		Action:     models.ActionUpload,
		DocumentID: &docID,
		VersionID:  &version.ID,
		Detail:     map[string]any{"s3_key": key},
		IPAddress:  actor.ipPtr(),
	})

	s.logger.Info("Version registered",
		"document_id", docID, "version_id", version.ID, "key", key)

	return &models.CreateDocumentResponse{
		DocumentID: docID,
		VersionID:  version.ID,
		Upload:     models.PresignedUpload{URL: url, Fields: fields},
	}, nil
}

// CompleteUpload is the hook the client calls after the presigned POST
// succeeds: record the object size and hand the version to the pipeline.
func (s *documentService) CompleteUpload(ctx context.Context, versionID int64) error {
	version, err := s.repo.GetVersion(ctx, versionID)
	if err != nil {
		s.logger.Error("Failed to get version", "error", err, "version_id", versionID)
		return utils.NewInternalError("Failed to retrieve version")
	}
	if version == nil {
		return utils.NewNotFoundError("Version not found")
	}

	size, err := s.storage.Stat(ctx, version.StorageKey)
	if err != nil {
		s.logger.Error("Uploaded object not found", "error", err, "key", version.StorageKey)
		return utils.NewBadRequestError("No uploaded object found for this version")
	}

	if err := s.repo.SetVersionSize(ctx, versionID, size); err != nil {
		s.logger.Error("Failed to record version size", "error", err, "version_id", versionID)
		return utils.NewInternalError("Failed to update version")
	}

	if err := s.jobs.Publish(ctx, versionID); err != nil {
		s.logger.Error("Failed to enqueue processing job", "error", err, "version_id", versionID)
		return utils.NewInternalError("Failed to queue document processing")
	}

	s.logger.Info("Upload completed, processing queued",
		"version_id", versionID, "size", size)
	return nil
}

func (s *documentService) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found")
	}

	if doc.Versions, err = s.repo.ListVersions(ctx, id); err != nil {
		s.logger.Error("Failed to list versions", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc.Tags, err = s.repo.ListTags(ctx, id); err != nil {
		s.logger.Error("Failed to list tags", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}

	return doc, nil
}

func (s *documentService) ListDocuments(ctx context.Context, ownerID string) ([]*models.Document, error) {
	docs, err := s.repo.ListDocuments(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to list documents", "error", err, "owner_id", ownerID)
		return nil, utils.NewInternalError("Failed to list documents")
	}
	return docs, nil
}

func (s *documentService) DeleteDocument(ctx context.Context, actor Actor, id int64) error {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return utils.NewNotFoundError("Document not found")
	}

	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list versions", "error", err, "id", id)
		return utils.NewInternalError("Failed to delete document")
	}

	// The audit entry goes in before the rows disappear; its document
	// reference nulls out with the delete.
	s.audit.Record(ctx, &models.AuditLogEntry{
		ActorID:    actor.idPtr(),
		Action:     models.ActionDelete,
		DocumentID: &id,
		Detail:     map[string]any{"title": doc.Title, "versions": len(versions)},
		IPAddress:  actor.ipPtr(),
	})

	for _, v := range versions {
		if err := s.storage.Delete(ctx, v.StorageKey); err != nil {
			// Keep going: a dangling object is recoverable, a half-deleted
			// document row is worse.
			s.logger.Error("Failed to delete stored object", "error", err, "key", v.StorageKey)
		}
	}

	if err := s.repo.DeleteDocument(ctx, id); err != nil {
		s.logger.Error("Failed to delete document", "error", err, "id", id)
		return utils.NewInternalError("Failed to delete document")
	}

	return nil
}

func (s *documentService) DownloadVersion(ctx context.Context, actor Actor, versionID int64) (*models.DownloadResponse, error) {
	version, err := s.repo.GetVersion(ctx, versionID)
	if err != nil {
		s.logger.Error("Failed to get version", "error", err, "version_id", versionID)
		return nil, utils.NewInternalError("Failed to retrieve version")
	}
	if version == nil {
		return nil, utils.NewNotFoundError("Version not found")
	}

	url, err := s.storage.PresignDownload(ctx, version.StorageKey, s.cfg.PresignExpiry)
	if err != nil {
		s.logger.Error("Failed to presign download", "error", err, "key", version.StorageKey)
		return nil, utils.NewInternalError("Failed to prepare download")
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActorID:    actor.idPtr(),
		Action:     models.ActionDownload,
		DocumentID: &version.DocumentID,
		VersionID:  &versionID,
		Detail:     map[string]any{"s3_key": version.StorageKey},
		IPAddress:  actor.ipPtr(),
	})

	return &models.DownloadResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(s.cfg.PresignExpiry),
	}, nil
}

func (s *documentService) AddTag(ctx context.Context, actor Actor, docID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return utils.NewBadRequestError("tag name is required")
	}

	if err := s.requireDocument(ctx, docID); err != nil {
		return err
	}

	if err := s.repo.AddTag(ctx, docID, name); err != nil {
		s.logger.Error("Failed to add tag", "error", err, "document_id", docID, "tag", name)
		return utils.NewInternalError("Failed to add tag")
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActorID:    actor.idPtr(),
		Action:     models.ActionTagAdded,
		DocumentID: &docID,
		Detail:     map[string]any{"tag": name},
		IPAddress:  actor.ipPtr(),
	})
	return nil
}

func (s *documentService) RemoveTag(ctx context.Context, actor Actor, docID int64, name string) error {
	if err := s.requireDocument(ctx, docID); err != nil {
		return err
	}

	if err := s.repo.RemoveTag(ctx, docID, name); err != nil {
		s.logger.Error("Failed to remove tag", "error", err, "document_id", docID, "tag", name)
		return utils.NewInternalError("Failed to remove tag")
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActorID:    actor.idPtr(),
		Action:     models.ActionTagRemoved,
		DocumentID: &docID,
		Detail:     map[string]any{"tag": name},
		IPAddress:  actor.ipPtr(),
	})
	return nil
}

func (s *documentService) ShareDocument(ctx context.Context, actor Actor, docID int64, req *models.ShareRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return utils.NewBadRequestError("user_id is required")
	}

	permission := req.Permission
	if permission == "" {
		permission = models.PermissionView
	}
	switch permission {
	case models.PermissionView, models.PermissionComment, models.PermissionEdit:
	default:
		return utils.NewBadRequestError("permission must be VIEW, COMMENT, or EDIT")
	}

	if err := s.requireDocument(ctx, docID); err != nil {
		return err
	}

	share := &models.SharedDocument{
		DocumentID: docID,
		UserID:     req.UserID,
		Permission: permission,
	}
	if err := s.repo.ShareDocument(ctx, share); err != nil {
		s.logger.Error("Failed to share document", "error", err, "document_id", docID)
		return utils.NewInternalError("Failed to share document")
	}

	s.audit.Record(ctx, &models.AuditLogEntry{
		ActorID:    actor.idPtr(),
		Action:     models.ActionUpdate,
		DocumentID: &docID,
		Detail:     map[string]any{"shared_with": req.UserID, "permission": permission},
		IPAddress:  actor.ipPtr(),
	})
	return nil
}

func (s *documentService) ListAudit(ctx context.Context, docID int64) ([]*models.AuditLogEntry, error) {
	entries, err := s.repo.ListAudit(ctx, docID)
	if err != nil {
		s.logger.Error("Failed to list audit entries", "error", err, "document_id", docID)
		return nil, utils.NewInternalError("Failed to list audit entries")
	}
	return entries, nil
}

func (s *documentService) requireDocument(ctx context.Context, id int64) error {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return utils.NewNotFoundError("Document not found")
	}
	return nil
}
