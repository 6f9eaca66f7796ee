package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/BerylCAtieno/doc-vault-api/internal/models"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	SetLatestVersion(ctx context.Context, docID, versionID int64) error

	CreateVersion(ctx context.Context, v *models.DocumentVersion) error
	GetVersion(ctx context.Context, id int64) (*models.DocumentVersion, error)
	ListVersions(ctx context.Context, docID int64) ([]*models.DocumentVersion, error)
	NextVersionNumber(ctx context.Context, docID int64) (int64, error)
	SetVersionSize(ctx context.Context, id int64, size int64) error
	SetVersionDigest(ctx context.Context, id int64, digest string) error
	SetVersionText(ctx context.Context, id int64, text string) error

	AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error
	ListAudit(ctx context.Context, docID int64) ([]*models.AuditLogEntry, error)

	AddTag(ctx context.Context, docID int64, name string) error
	RemoveTag(ctx context.Context, docID int64, name string) error
	ListTags(ctx context.Context, docID int64) ([]string, error)

	ShareDocument(ctx context.Context, share *models.SharedDocument) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (title, description, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, doc.Title, doc.Description, doc.OwnerID, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return err
	}

	doc.ID, err = res.LastInsertId()
	return err
}

func (r *repository) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	var doc models.Document
	err := r.db.GetContext(ctx, &doc, `
		SELECT id, title, description, owner_id, latest_version_id, created_at, updated_at
		FROM documents
		WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *repository) ListDocuments(ctx context.Context, ownerID string) ([]*models.Document, error) {
	var docs []*models.Document
	err := r.db.SelectContext(ctx, &docs, `
		SELECT id, title, description, owner_id, latest_version_id, created_at, updated_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	return docs, err
}

func (r *repository) DeleteDocument(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

func (r *repository) SetLatestVersion(ctx context.Context, docID, versionID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET latest_version_id = $2, updated_at = $3 WHERE id = $1
	`, docID, versionID, time.Now().UTC())
	return err
}

func (r *repository) CreateVersion(ctx context.Context, v *models.DocumentVersion) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO document_versions
			(document_id, version_number, storage_key, uploaded_by, created_at,
			 file_size, content_type, file_hash, ocr_text, indexed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.DocumentID, v.VersionNumber, v.StorageKey, v.UploadedBy, v.CreatedAt,
		v.FileSize, v.ContentType, v.FileHash, v.OCRText, v.Indexed)
	if err != nil {
		return err
	}

	v.ID, err = res.LastInsertId()
	return err
}

func (r *repository) GetVersion(ctx context.Context, id int64) (*models.DocumentVersion, error) {
	var v models.DocumentVersion
	err := r.db.GetContext(ctx, &v, `
		SELECT id, document_id, version_number, storage_key, uploaded_by, created_at,
		       file_size, content_type, file_hash, ocr_text, indexed
		FROM document_versions
		WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repository) ListVersions(ctx context.Context, docID int64) ([]*models.DocumentVersion, error) {
	var versions []*models.DocumentVersion
	err := r.db.SelectContext(ctx, &versions, `
		SELECT id, document_id, version_number, storage_key, uploaded_by, created_at,
		       file_size, content_type, file_hash, ocr_text, indexed
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
	`, docID)
	return versions, err
}

func (r *repository) NextVersionNumber(ctx context.Context, docID int64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT COALESCE(MAX(version_number), 0) + 1
		FROM document_versions
		WHERE document_id = $1
	`, docID)
	return n, err
}

func (r *repository) SetVersionSize(ctx context.Context, id int64, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE document_versions SET file_size = $2 WHERE id = $1
	`, id, size)
	return err
}

// SetVersionDigest records the content digest. The digest is set-once: a
// version that already has one keeps it, so concurrent or retried pipeline
// runs can never rewrite it.
func (r *repository) SetVersionDigest(ctx context.Context, id int64, digest string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE document_versions SET file_hash = $2 WHERE id = $1 AND file_hash = ''
	`, id, digest)
	return err
}

func (r *repository) SetVersionText(ctx context.Context, id int64, text string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE document_versions SET ocr_text = $2 WHERE id = $1
	`, id, text)
	return err
}

func (r *repository) AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if entry.Detail != nil {
		data, err := json.Marshal(entry.Detail)
		if err != nil {
			return err
		}
		s := string(data)
		detailJSON = &s
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, action, document_id, version_id, timestamp, detail, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ActorID, entry.Action, entry.DocumentID, entry.VersionID, entry.Timestamp, detailJSON, entry.IPAddress)
	if err != nil {
		return err
	}

	entry.ID, err = res.LastInsertId()
	return err
}

func (r *repository) ListAudit(ctx context.Context, docID int64) ([]*models.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, action, document_id, version_id, timestamp, detail, ip_address
		FROM audit_log
		WHERE document_id = $1
		ORDER BY timestamp ASC, id ASC
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		var entry models.AuditLogEntry
		var detailJSON sql.NullString
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.DocumentID,
			&entry.VersionID, &entry.Timestamp, &detailJSON, &entry.IPAddress); err != nil {
			return nil, err
		}
		if detailJSON.Valid && detailJSON.String != "" {
			if err := json.Unmarshal([]byte(detailJSON.String), &entry.Detail); err != nil {
				return nil, err
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (r *repository) AddTag(ctx context.Context, docID int64, name string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tags (name, created_at) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, time.Now().UTC())
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO document_tags (document_id, tag_id)
		SELECT $1, id FROM tags WHERE name = $2
		ON CONFLICT DO NOTHING
	`, docID, name)
	return err
}

func (r *repository) RemoveTag(ctx context.Context, docID int64, name string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM document_tags
		WHERE document_id = $1 AND tag_id IN (SELECT id FROM tags WHERE name = $2)
	`, docID, name)
	return err
}

func (r *repository) ListTags(ctx context.Context, docID int64) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names, `
		SELECT t.name
		FROM tags t
		JOIN document_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = $1
		ORDER BY t.name
	`, docID)
	return names, err
}

func (r *repository) ShareDocument(ctx context.Context, share *models.SharedDocument) error {
	if share.SharedAt.IsZero() {
		share.SharedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO shared_documents (document_id, user_id, permission, shared_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, user_id) DO UPDATE SET permission = excluded.permission
	`, share.DocumentID, share.UserID, share.Permission, share.SharedAt)
	if err != nil {
		return err
	}

	share.ID, _ = res.LastInsertId()
	return nil
}
