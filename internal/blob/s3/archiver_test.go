package s3blob

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
)

type fakeWriter struct {
	puts map[string][]byte
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.puts[path] = body
	return nil
}

type fakeReader struct {
	existing map[string]bool
}

func (r *fakeReader) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (r *fakeReader) List(context.Context, string) ([]domain.BlobInfo, error) {
	return nil, nil
}

func (r *fakeReader) Exists(_ context.Context, path string) (bool, error) {
	return r.existing[path], nil
}

type fakeDuelSource struct {
	duels map[domain.DuelStatus][]domain.Duel
}

func (s *fakeDuelSource) ListByStatus(_ context.Context, status domain.DuelStatus, opts domain.ListOpts) ([]domain.Duel, error) {
	all := s.duels[status]
	if opts.Offset >= len(all) {
		return nil, nil
	}
	return all[opts.Offset:], nil
}

type fakeAudit struct {
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveFinalizedWritesDailyPartition(t *testing.T) {
	ctx := context.Background()
	writer := &fakeWriter{puts: map[string][]byte{}}
	audit := &fakeAudit{}
	source := &fakeDuelSource{duels: map[domain.DuelStatus][]domain.Duel{
		domain.DuelStatusSettled:   {{ID: uuid.New(), Status: domain.DuelStatusSettled}},
		domain.DuelStatusCancelled: {{ID: uuid.New(), Status: domain.DuelStatusCancelled}},
	}}
	arch := NewArchiver(writer, &fakeReader{existing: map[string]bool{}}, source, audit)

	asOf := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	count, err := arch.ArchiveFinalized(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	body, ok := writer.puts["archive/duels/2026-03-14.jsonl"]
	require.True(t, ok, "partition keyed by day")
	assert.NotEmpty(t, body)
	assert.Equal(t, []string{"archive.duels"}, audit.events)
}

func TestArchiveFinalizedSkipsExistingPartition(t *testing.T) {
	ctx := context.Background()
	writer := &fakeWriter{puts: map[string][]byte{}}
	source := &fakeDuelSource{duels: map[domain.DuelStatus][]domain.Duel{
		domain.DuelStatusSettled: {{ID: uuid.New(), Status: domain.DuelStatusSettled}},
	}}
	reader := &fakeReader{existing: map[string]bool{
		"archive/duels/2026-03-14.jsonl": true,
	}}
	arch := NewArchiver(writer, reader, source, &fakeAudit{})

	count, err := arch.ArchiveFinalized(ctx, time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.puts, "existing partition is never rewritten")
}

func TestArchiveFinalizedNothingToArchive(t *testing.T) {
	ctx := context.Background()
	writer := &fakeWriter{puts: map[string][]byte{}}
	audit := &fakeAudit{}
	arch := NewArchiver(writer, &fakeReader{existing: map[string]bool{}}, &fakeDuelSource{duels: map[domain.DuelStatus][]domain.Duel{}}, audit)

	count, err := arch.ArchiveFinalized(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.puts)
	assert.Empty(t, audit.events)
}
