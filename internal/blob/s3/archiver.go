package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duelhouse/duelengine/internal/domain"
)

// archivePageSize is how many duels are fetched per store query while
// building an archive file.
const archivePageSize = 500

// DuelArchiveSource is the narrow slice of the duel store the archiver needs:
// it only reads finalized duels, never mutates them.
type DuelArchiveSource interface {
	ListByStatus(ctx context.Context, status domain.DuelStatus, opts domain.ListOpts) ([]domain.Duel, error)
}

// Archiver uploads JSONL snapshots of finalized duels to blob storage,
// partitioned by day. A partition already present in the bucket is left
// alone, so restarting the process does not rewrite the day's file.
//
// Removal of archived duels from the primary store is intentionally NOT
// performed here; that is a separate, explicit step to be executed after the
// archive has been verified.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	duels  DuelArchiveSource
	audit  domain.AuditStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, duels DuelArchiveSource, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		duels:  duels,
		audit:  audit,
	}
}

// ArchiveFinalized collects every settled and cancelled duel, serializes them
// to JSONL, and uploads the file at archive/duels/YYYY-MM-DD.jsonl for asOf's
// day. When the day's partition already exists the sweep is skipped and zero
// is returned. The archival event is recorded in the audit log and the count
// of archived duels is returned.
func (a *Archiver) ArchiveFinalized(ctx context.Context, asOf time.Time) (int64, error) {
	path := archivePath("duels", asOf)

	written, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive duels probe: %w", err)
	}
	if written {
		return 0, nil
	}

	var finalized []domain.Duel
	for _, status := range []domain.DuelStatus{domain.DuelStatusSettled, domain.DuelStatusCancelled} {
		duels, err := a.collect(ctx, status)
		if err != nil {
			return 0, err
		}
		finalized = append(finalized, duels...)
	}
	if len(finalized) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(finalized)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive duels marshal: %w", err)
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive duels upload: %w", err)
	}

	count := int64(len(finalized))

	if err := a.audit.Log(ctx, "archive.duels", map[string]any{
		"path":  path,
		"count": count,
		"as_of": asOf.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive duels audit log: %w", err)
	}

	return count, nil
}

// collect pages through every duel with the given status.
func (a *Archiver) collect(ctx context.Context, status domain.DuelStatus) ([]domain.Duel, error) {
	var out []domain.Duel
	for offset := 0; ; offset += archivePageSize {
		page, err := a.duels.ListByStatus(ctx, status, domain.ListOpts{
			Limit:  archivePageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s duels: %w", status, err)
		}
		out = append(out, page...)
		if len(page) < archivePageSize {
			return out, nil
		}
	}
}

// archivePath builds the blob key for an archive file, partitioned by the
// day of the cutoff time.
//
//	archive/duels/2026-03-14.jsonl
func archivePath(kind string, asOf time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, asOf.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON, one
// compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
