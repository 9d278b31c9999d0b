package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

func TestRefreshCmd_Use(t *testing.T) {
	assert.Equal(t, "refresh", refreshCmd.Use)
}

func TestRefreshCmd_RunsDetectedChanges(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := indexer.(*cliMockIndexer)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"refresh"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.True(t, mock.runCalled)
	assert.Contains(t, buf.String(), "Detected 1 new")
	assert.Contains(t, buf.String(), "Processed 1 documents (3 chunks)")
}

func TestRefreshCmd_UpToDate(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := indexer.(*cliMockIndexer)
	mock.changes = domain.ChangeSet{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"refresh"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.False(t, mock.runCalled)
	assert.Contains(t, buf.String(), "Index is up to date.")
}

func TestRefreshCmd_PassesFlagsToDetect(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := indexer.(*cliMockIndexer)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{
		"refresh", "--force-full", "--since", "2026-07-01",
		"--limit", "25", "--file-types", "docs", "--dry-run",
	})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.True(t, mock.gotDetect.ForceFull)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), mock.gotDetect.Since)
	assert.Equal(t, 25, mock.gotDetect.Limit)
	assert.Equal(t, []domain.FileType{domain.FileTypeDocs}, mock.gotDetect.FileTypes)
	assert.True(t, mock.gotRunOpts.DryRun)
}

func TestRefreshCmd_UsesStoredWatermark(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := indexer.(*cliMockIndexer)

	watermark := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	syncStore = &cliMockSyncStore{state: domain.SyncState{LastRefreshTime: watermark}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"refresh"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, watermark, mock.gotDetect.Watermark)
}

func TestRefreshCmd_ReportsFailures(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := indexer.(*cliMockIndexer)
	mock.summary = domain.RunSummary{
		Processed: 1,
		Failures: []domain.DocumentFailure{
			{DocumentID: "bad", Name: "Broken Doc", Reason: "fetch: permanent remote error"},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"refresh"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 documents failed:")
	assert.Contains(t, buf.String(), "Broken Doc: fetch: permanent remote error")
}

func TestRefreshCmd_ReportsConsistencyWarnings(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := indexer.(*cliMockIndexer)
	mock.summary = domain.RunSummary{
		Failures: []domain.DocumentFailure{
			{DocumentID: "bad", Name: "Broken Doc", Reason: "upsert: transient remote error"},
		},
		Warnings: []domain.ConsistencyWarning{
			{Key: "bad#0", PresentIn: "dense", MissingFrom: "sparse"},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"refresh"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 consistency warnings")
	assert.Contains(t, buf.String(), "vector bad#0 present in dense but missing from sparse")
}

func TestRefreshCmd_RejectsBadSince(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"refresh", "--since", "last tuesday"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --since")
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{name: "empty", value: "", want: time.Time{}},
		{name: "date", value: "2026-07-01", want: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", value: "2026-07-01T08:30:00Z", want: time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC)},
		{name: "garbage", value: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSince(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestStatusCmd_ShowsWatermarkAndStats(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	syncStore = &cliMockSyncStore{state: domain.SyncState{
		LastRefreshTime: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		IndexedFiles:    12,
		IndexedChunks:   345,
	}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"status"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Indexed files: 12")
	assert.Contains(t, out, "Indexed chunks: 345")
	assert.Contains(t, out, "Dense index: dense-test, 10 vectors")
	assert.Contains(t, out, "Sparse index: sparse-test, 10 vectors")
}

func TestStatusCmd_NoRefreshYet(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"status"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No refresh recorded yet.")
}
