package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/BerylCAtieno/doc-vault-api/internal/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// Driver-level failures are impractical to provoke on a real database file,
// so these paths are covered with sqlmock.
func mockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlite")), mock
}

func TestGetDocumentPropagatesError(t *testing.T) {
	repo, mock := mockRepo(t)

	mock.ExpectQuery("SELECT id, title").
		WillReturnError(errors.New("disk I/O error"))

	doc, err := repo.GetDocument(context.Background(), 1)
	if err == nil {
		t.Error("expected the driver error to surface")
	}
	if doc != nil {
		t.Errorf("doc = %+v, want nil on error", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetVersionPropagatesError(t *testing.T) {
	repo, mock := mockRepo(t)

	mock.ExpectQuery("SELECT id, document_id").
		WillReturnError(errors.New("database is locked"))

	if _, err := repo.GetVersion(context.Background(), 1); err == nil {
		t.Error("expected the driver error to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAppendAuditPropagatesError(t *testing.T) {
	repo, mock := mockRepo(t)

	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnError(errors.New("constraint failed"))

	entry := &models.AuditLogEntry{Action: models.ActionUpload}
	if err := repo.AppendAudit(context.Background(), entry); err == nil {
		t.Error("expected the driver error to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
