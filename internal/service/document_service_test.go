package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/pkg/ingest"
	"research-agent-be/pkg/retrieval/hybrid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentService(t *testing.T) (IDocumentService, *hybrid.Engine) {
	t.Helper()
	splitter, err := ingest.NewSplitter(200, 20)
	require.NoError(t, err)
	log := logger.NewNopLogger()
	engine := hybrid.NewEngine(nil, 0, log)
	return NewDocumentService(engine, ingest.NewIngestor(splitter, log), log), engine
}

func TestUpload_IndexesAndReplacesByName(t *testing.T) {
	ctx := context.Background()
	svc, engine := newDocumentService(t)

	res, err := svc.Upload(ctx, []dto.UploadedFile{
		{Name: "retrieval.txt", Data: []byte("Hybrid retrieval fuses BM25 and dense vectors.")},
		{Name: "debug.md", Data: []byte("Self-debugging lets models repair their code.")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, res.DocumentCount)

	res, err = svc.Upload(ctx, []dto.UploadedFile{
		{Name: "retrieval.txt", Data: []byte("Reciprocal rank fusion is an alternative to score fusion.")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.DocumentCount)

	var texts []string
	for _, c := range engine.Chunks() {
		if c.Source == "retrieval.txt" {
			texts = append(texts, c.Text)
		}
	}
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "Reciprocal rank fusion"))
}

func TestUpload_RepeatedNameLastFileWins(t *testing.T) {
	svc, engine := newDocumentService(t)

	res, err := svc.Upload(context.Background(), []dto.UploadedFile{
		{Name: "paper.txt", Data: []byte("First draft about sparse retrieval.")},
		{Name: "notes.md", Data: []byte("Chunk overlap keeps context across boundaries.")},
		{Name: "uploads/paper.txt", Data: []byte("Final version about dense retrieval.")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Files, 3)
	assert.False(t, res.Files[0].Success)
	assert.Equal(t, ErrDuplicateFile.Error(), res.Files[0].Error)
	assert.True(t, res.Files[2].Success)
	assert.Equal(t, 2, res.DocumentCount)

	var texts []string
	for _, c := range engine.Chunks() {
		if c.Source == "paper.txt" {
			texts = append(texts, c.Text)
		}
	}
	assert.Equal(t, []string{"Final version about dense retrieval."}, texts)
}

func TestUpload_ConcurrentUploadsKeepEveryDocument(t *testing.T) {
	svc, engine := newDocumentService(t)
	names := []string{"a.txt", "b.txt", "c.txt", "d.txt"}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for {
				_, err := svc.Upload(context.Background(), []dto.UploadedFile{
					{Name: name, Data: []byte("Paper " + name + " on hybrid retrieval.")},
				})
				if !errors.Is(err, hybrid.ErrRebuildInProgress) {
					assert.NoError(t, err)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}(name)
	}
	wg.Wait()

	assert.Equal(t, len(names), engine.Status().DocumentCount)
}

func TestUpload_PartialFailureIsReported(t *testing.T) {
	svc, _ := newDocumentService(t)

	res, err := svc.Upload(context.Background(), []dto.UploadedFile{
		{Name: "notes.txt", Data: []byte("Chunk overlap keeps context across boundaries.")},
		{Name: "slides.pptx", Data: []byte("binary")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Files, 2)
	assert.False(t, res.Files[1].Success)
	assert.NotEmpty(t, res.Files[1].Error)
}

func TestUpload_AllFailed(t *testing.T) {
	svc, engine := newDocumentService(t)

	_, err := svc.Upload(context.Background(), []dto.UploadedFile{
		{Name: "slides.pptx", Data: []byte("binary")},
		{Name: "empty.txt", Data: []byte("   ")},
	})
	var reqErr *serverutils.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 400, reqErr.Status)
	assert.False(t, engine.Status().HasDocuments)
}

func TestIndexStatusAndReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newDocumentService(t)

	status, err := svc.IndexStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.HasDocuments)

	_, err = svc.Upload(ctx, []dto.UploadedFile{{Name: "a.txt", Data: []byte("Dense passage retrieval.")}})
	require.NoError(t, err)

	status, err = svc.IndexStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.HasDocuments)
	assert.Equal(t, 1, status.DocumentCount)

	status, err = svc.ResetIndex(ctx)
	require.NoError(t, err)
	assert.False(t, status.HasDocuments)
	assert.Equal(t, 0, status.DocumentCount)
}

func TestPreload(t *testing.T) {
	ctx := context.Background()
	svc, engine := newDocumentService(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Alpha paper on retrieval."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("garbage"), 0o644))

	res, err := svc.Preload(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	require.Len(t, res.Files, 2)
	assert.True(t, res.Files[0].Success)
	assert.False(t, res.Files[1].Success)
	assert.Equal(t, 1, engine.Status().DocumentCount)

	empty, err := svc.Preload(ctx, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Chunks)
	assert.Equal(t, 1, engine.Status().DocumentCount)
}
