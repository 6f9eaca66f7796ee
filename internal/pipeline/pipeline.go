package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BerylCAtieno/doc-vault-api/internal/audit"
	"github.com/BerylCAtieno/doc-vault-api/internal/extractor"
	"github.com/BerylCAtieno/doc-vault-api/internal/hasher"
	"github.com/BerylCAtieno/doc-vault-api/internal/models"
	"github.com/BerylCAtieno/doc-vault-api/internal/repository"
	"github.com/BerylCAtieno/doc-vault-api/internal/scanner"
	"github.com/BerylCAtieno/doc-vault-api/internal/storage"
	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
)

// ErrVersionNotFound means the version record no longer exists. The job
// queue must not keep retrying such a job.
var ErrVersionNotFound = errors.New("document version not found")

type Status int

const (
	StatusCompleted Status = iota
	StatusFailed
)

// Outcome is the result of one pipeline execution. Failed outcomes carry
// whether the job is worth retrying.
type Outcome struct {
	Status    Status
	Reason    string
	Err       error
	Retryable bool
}

func Completed(reason string) Outcome {
	return Outcome{Status: StatusCompleted, Reason: reason}
}

func Failed(err error, retryable bool) Outcome {
	return Outcome{Status: StatusFailed, Err: err, Retryable: retryable}
}

// Orchestrator runs the processing stages for one document version:
// load, fetch to scratch, digest, scan, extract, persist, cleanup.
type Orchestrator struct {
	repo       repository.Repository
	storage    storage.Storage
	scanner    scanner.Scanner
	engine     *extractor.Engine
	audit      *audit.Recorder
	logger     *utils.Logger
	scratchDir string
}

func NewOrchestrator(
	repo repository.Repository,
	store storage.Storage,
	scan scanner.Scanner,
	engine *extractor.Engine,
	recorder *audit.Recorder,
	logger *utils.Logger,
	scratchDir string,
) *Orchestrator {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Orchestrator{
		repo:       repo,
		storage:    store,
		scanner:    scan,
		engine:     engine,
		audit:      recorder,
		logger:     logger,
		scratchDir: scratchDir,
	}
}

// Process runs the pipeline for a single version. Stage policy:
//
//   - missing version record: terminal, never retried
//   - blob fetch errors: retryable
//   - digest: skipped when already set, persisted immediately once computed
//   - scanner unavailable: logged, processing continues — a scanner outage
//     must not block document availability
//   - infected: audited and the version is left unextracted; this is a
//     successful detection, not a pipeline fault
//   - extraction errors: annotated into the text, never fatal
//
// The scratch file is removed on every exit path.
func (o *Orchestrator) Process(ctx context.Context, versionID int64) Outcome {
	version, err := o.repo.GetVersion(ctx, versionID)
	if err != nil {
		return Failed(fmt.Errorf("load version %d: %w", versionID, err), true)
	}
	if version == nil {
		o.logger.Error("Document version not found", "version_id", versionID)
		return Failed(ErrVersionNotFound, false)
	}

	scratch, err := o.storage.FetchToFile(ctx, version.StorageKey, o.scratchDir)
	if err != nil {
		return Failed(fmt.Errorf("fetch %s: %w", version.StorageKey, err), true)
	}
	defer o.cleanupScratch(scratch)

	if outcome, done := o.digest(ctx, version, scratch); done {
		return outcome
	}

	if outcome, done := o.scan(ctx, version, scratch); done {
		return outcome
	}

	text := o.extract(ctx, version, scratch)

	if err := o.repo.SetVersionText(ctx, version.ID, text); err != nil {
		return Failed(fmt.Errorf("persist text for version %d: %w", version.ID, err), true)
	}

	o.logger.Info("Document version processed",
		"version_id", version.ID,
		"document_id", version.DocumentID,
		"text_length", len(text))

	return Completed("processed")
}

// digest computes and persists the content hash unless a prior run already
// set it. Persisting before the later stages makes the stage safe to skip
// on retry.
func (o *Orchestrator) digest(ctx context.Context, version *models.DocumentVersion, scratch string) (Outcome, bool) {
	if version.FileHash != "" {
		o.logger.Debug("Digest already set, skipping hash", "version_id", version.ID)
		return Outcome{}, false
	}

	sum, err := hasher.SHA256File(scratch)
	if err != nil {
		return Failed(fmt.Errorf("hash version %d: %w", version.ID, err), true), true
	}

	if err := o.repo.SetVersionDigest(ctx, version.ID, sum); err != nil {
		return Failed(fmt.Errorf("persist digest for version %d: %w", version.ID, err), true), true
	}
	version.FileHash = sum

	return Outcome{}, false
}

// scan submits the scratch file to the malware scanner. An infected verdict
// ends processing for the version; an unavailable scanner does not.
func (o *Orchestrator) scan(ctx context.Context, version *models.DocumentVersion, scratch string) (Outcome, bool) {
	verdict := o.scanner.Scan(ctx, scratch)

	switch {
	case verdict.Infected():
		o.audit.Record(ctx, &models.AuditLogEntry{
			Action:     models.ActionVirusDetected,
			DocumentID: &version.DocumentID,
			VersionID:  &version.ID,
			Detail: map[string]any{
				"virus_scan": verdict.Raw,
				"virus":      verdict.Threat,
			},
		})
		o.logger.Info("Virus detected, version quarantined",
			"version_id", version.ID, "threat", verdict.Threat)
		return Completed("virus detected"), true

	case verdict.Unavailable():
		o.logger.Error("Virus scan unavailable, continuing without verdict",
			"version_id", version.ID, "detail", verdict.Raw)
		return Outcome{}, false

	default:
		o.audit.Record(ctx, &models.AuditLogEntry{
			Action:     models.ActionVirusScanPassed,
			DocumentID: &version.DocumentID,
			VersionID:  &version.ID,
			Detail: map[string]any{
				"virus_scan": verdict.Raw,
			},
		})
		o.logger.Info("Virus scan passed", "version_id", version.ID, "key", version.StorageKey)
		return Outcome{}, false
	}
}

// extract runs the format-resolved extractor. Failures are folded into the
// text as an annotation; whatever partial text exists is kept.
func (o *Orchestrator) extract(ctx context.Context, version *models.DocumentVersion, scratch string) string {
	format := extractor.ResolveFormat(version.ContentType, version.StorageKey)

	text, err := o.engine.For(format).Extract(ctx, scratch)
	if err != nil {
		o.logger.Error("Text extraction failed",
			"version_id", version.ID, "format", format.String(), "error", err)
		text = strings.TrimSpace(text + fmt.Sprintf("\n\n[extraction error: %v]", err))
	}

	return text
}

func (o *Orchestrator) cleanupScratch(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		o.logger.Error("Failed to clean up scratch file", "path", path, "error", err)
		return
	}
	o.logger.Debug("Cleaned up scratch file", "path", path)
}
