package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/pkg/ingest"
	"research-agent-be/pkg/retrieval/hybrid"
	"research-agent-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNoValidDocuments = errors.New("no valid documents in upload")
	ErrDuplicateFile    = errors.New("superseded by a later file with the same name")
)

type IDocumentService interface {
	Upload(ctx context.Context, files []dto.UploadedFile) (*dto.UploadResponse, error)
	Preload(ctx context.Context, dir string) (*dto.PreloadResponse, error)
	IndexStatus(ctx context.Context) (*dto.IndexStatusResponse, error)
	ResetIndex(ctx context.Context) (*dto.IndexStatusResponse, error)
}

// DocumentIndex is the corpus the pipeline retrieves from
type DocumentIndex interface {
	Index(ctx context.Context, chunks []store.DocumentChunk) error
	Replace(ctx context.Context, fresh []store.DocumentChunk) error
	Reset(ctx context.Context) error
	Status() hybrid.Status
}

type documentService struct {
	index    DocumentIndex
	ingestor *ingest.Ingestor
	logger   logger.ILogger
}

func NewDocumentService(index DocumentIndex, ingestor *ingest.Ingestor, log logger.ILogger) IDocumentService {
	return &documentService{
		index:    index,
		ingestor: ingestor,
		logger:   log,
	}
}

// Upload ingests every file and rebuilds the index with the new documents
// replacing earlier ones of the same name. Within one upload the last file
// of a name wins.
func (s *documentService) Upload(ctx context.Context, files []dto.UploadedFile) (*dto.UploadResponse, error) {
	res := &dto.UploadResponse{Files: make([]dto.FileResult, 0, len(files))}
	var fresh []store.DocumentChunk

	last := make(map[string]int, len(files))
	for i, f := range files {
		last[filepath.Base(f.Name)] = i
	}

	for i, f := range files {
		if last[filepath.Base(f.Name)] != i {
			res.Failed++
			res.Files = append(res.Files, dto.FileResult{Name: f.Name, Error: ErrDuplicateFile.Error()})
			continue
		}
		chunks, err := s.ingestor.Ingest(ctx, f.Name, f.Data)
		if err != nil {
			res.Failed++
			res.Files = append(res.Files, dto.FileResult{Name: f.Name, Error: err.Error()})
			continue
		}
		res.Indexed++
		res.Files = append(res.Files, dto.FileResult{Name: f.Name, Success: true, Chunks: len(chunks)})
		fresh = append(fresh, chunks...)
	}

	if len(fresh) == 0 {
		return nil, serverutils.NewRequestError(fiber.StatusBadRequest, ErrNoValidDocuments.Error(), res.Files)
	}

	if err := s.index.Replace(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to index upload: %w", err)
	}

	status := s.index.Status()
	res.DocumentCount = status.DocumentCount
	res.ChunkCount = status.ChunkCount

	s.logger.Info("DocumentService", "Upload indexed", map[string]interface{}{
		"indexed":   res.Indexed,
		"failed":    res.Failed,
		"documents": status.DocumentCount,
		"chunks":    status.ChunkCount,
	})
	return res, nil
}

// Preload indexes every supported file of dir. An empty folder leaves the
// index untouched.
func (s *documentService) Preload(ctx context.Context, dir string) (*dto.PreloadResponse, error) {
	chunks, reports, err := s.ingestor.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}

	res := &dto.PreloadResponse{Folder: dir, Files: make([]dto.FileResult, 0, len(reports)), Chunks: len(chunks)}
	for _, r := range reports {
		fr := dto.FileResult{Name: r.Name, Success: r.Err == nil, Chunks: r.Chunks}
		if r.Err != nil {
			fr.Error = r.Err.Error()
		}
		res.Files = append(res.Files, fr)
	}
	if len(chunks) == 0 {
		s.logger.Info("DocumentService", "No documents to preload", map[string]interface{}{"folder": dir})
		return res, nil
	}

	if err := s.index.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", dir, err)
	}
	s.logger.Info("DocumentService", "Documents preloaded", map[string]interface{}{
		"folder": dir,
		"files":  len(reports),
		"chunks": len(chunks),
	})
	return res, nil
}

func (s *documentService) IndexStatus(ctx context.Context) (*dto.IndexStatusResponse, error) {
	return toStatusResponse(s.index.Status()), nil
}

func (s *documentService) ResetIndex(ctx context.Context) (*dto.IndexStatusResponse, error) {
	if err := s.index.Reset(ctx); err != nil {
		return nil, err
	}
	return toStatusResponse(s.index.Status()), nil
}

func toStatusResponse(st hybrid.Status) *dto.IndexStatusResponse {
	return &dto.IndexStatusResponse{
		DocumentCount:   st.DocumentCount,
		HasDocuments:    st.HasDocuments,
		ChunkCount:      st.ChunkCount,
		Generation:      st.Generation,
		Rebuilding:      st.Rebuilding,
		SemanticBackend: st.SemanticBackend,
	}
}
