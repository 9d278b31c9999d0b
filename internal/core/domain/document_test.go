package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorKey(t *testing.T) {
	assert.Equal(t, "abc#0", VectorKey("abc", 0))
	assert.Equal(t, "abc#12", VectorKey("abc", 12))
}

func TestVectorKey_UniqueWithinDocument(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key := VectorKey("doc-1", i)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "doc-1#", KeyPrefix("doc-1"))

	// Every chunk key of a document shares its prefix.
	for i := 0; i < 5; i++ {
		key := VectorKey("doc-1", i)
		assert.Contains(t, key, KeyPrefix("doc-1"))
	}
}

func TestParseVectorKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantDoc   string
		wantIndex int
		wantErr   bool
	}{
		{name: "simple", key: "abc#3", wantDoc: "abc", wantIndex: 3},
		{name: "id containing separator", key: "a#b#7", wantDoc: "a#b", wantIndex: 7},
		{name: "no separator", key: "abc", wantErr: true},
		{name: "non-numeric index", key: "abc#x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, index, err := ParseVectorKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDoc, doc)
			assert.Equal(t, tt.wantIndex, index)
		})
	}
}

func TestChunk_Key(t *testing.T) {
	c := Chunk{DocumentID: "doc-9", Index: 4}
	assert.Equal(t, "doc-9#4", c.Key())
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		want     FileType
	}{
		{"google doc", "Notes", MimeTypeGoogleDoc, FileTypeDocs},
		{"google sheet", "Budget", MimeTypeGoogleSheet, FileTypeSheets},
		{"google slides", "Deck", MimeTypeGoogleSlides, FileTypeSlides},
		{"folder", "stuff", MimeTypeFolder, ""},
		{"markdown by mime", "README.md", "text/markdown", FileTypePlaintext},
		{"markdown by extension", "README.md", "application/octet-stream", FileTypePlaintext},
		{"binary", "image.png", "image/png", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFileType(tt.fileName, tt.mimeType))
		})
	}
}

func TestIsValidFileType(t *testing.T) {
	for _, ft := range ValidFileTypes() {
		assert.True(t, IsValidFileType(string(ft)))
	}
	assert.False(t, IsValidFileType("pdf"))
	assert.False(t, IsValidFileType(""))
}

func TestCandidate_Combined(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want float64
	}{
		{
			name: "both sides present",
			c:    Candidate{DenseScore: 0.6, HasDense: true, SparseScore: 5.0, HasSparse: true},
			want: (2.0*0.6 + 0.5) / 3.0,
		},
		{
			name: "sparse clamped to 1",
			c:    Candidate{DenseScore: 0.6, HasDense: true, SparseScore: 25.0, HasSparse: true},
			want: (2.0*0.6 + 1.0) / 3.0,
		},
		{
			name: "dense only falls back to dense score",
			c:    Candidate{DenseScore: 0.8, HasDense: true},
			want: 0.8,
		},
		{
			name: "sparse present but zero behaves as absent",
			c:    Candidate{DenseScore: 0.7, HasDense: true, SparseScore: 0, HasSparse: true},
			want: 0.7,
		},
		{
			name: "sparse only falls back to normalised sparse score",
			c:    Candidate{SparseScore: 7.0, HasSparse: true},
			want: 0.7,
		},
		{
			name: "sparse only clamped to 1",
			c:    Candidate{SparseScore: 25.0, HasSparse: true},
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.c.Combined(), 1e-9)
		})
	}
}
