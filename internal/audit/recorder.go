package audit

import (
	"context"

	"github.com/BerylCAtieno/doc-vault-api/internal/models"
	"github.com/BerylCAtieno/doc-vault-api/internal/repository"
	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
)

// Recorder appends immutable audit entries. A failed append is logged and
// swallowed: the document must still be processed even when the audit
// write fails, so Record never reports an error to the caller.
type Recorder struct {
	repo   repository.Repository
	logger *utils.Logger
}

func NewRecorder(repo repository.Repository, logger *utils.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, entry *models.AuditLogEntry) {
	if err := r.repo.AppendAudit(ctx, entry); err != nil {
		r.logger.Error("Failed to append audit entry",
			"error", err,
			"action", entry.Action,
			"document_id", entry.DocumentID,
			"version_id", entry.VersionID)
	}
}
