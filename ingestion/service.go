package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docqa/database"
	"docqa/vectorstore"
)

// Service owns the document lifecycle: storing the uploaded file, extracting
// and chunking its text, recording the document row, and keeping the user's
// vector store in sync.
type Service struct {
	db        *database.Store
	stores    *vectorstore.Manager
	splitter  *Splitter
	uploadDir string
	logger    zerolog.Logger
}

func NewService(db *database.Store, stores *vectorstore.Manager, splitter *Splitter, uploadDir string, logger zerolog.Logger) *Service {
	if splitter == nil {
		splitter = NewSplitter(defaultChunkSize, defaultChunkOverlap)
	}
	return &Service{
		db:        db,
		stores:    stores,
		splitter:  splitter,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

type UploadResult struct {
	DocID      int64  `json:"id"`
	Filename   string `json:"filename"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunks"`
}

// IngestPDF stores and indexes one uploaded PDF for the user. On any
// failure after the document row is created, the row and the stored file are
// removed again so a failed upload leaves no trace.
func (s *Service) IngestPDF(ctx context.Context, userID int64, originalName string, data []byte) (*UploadResult, error) {
	store, err := s.stores.ForUser(userID)
	if err != nil {
		return nil, err
	}

	userDir := filepath.Join(s.uploadDir, fmt.Sprintf("user_%d", userID))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	storedName := uuid.NewString() + "_" + filepath.Base(originalName)
	path := filepath.Join(userDir, storedName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("save uploaded file: %w", err)
	}

	pages, err := ExtractPages(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	if len(pages) == 0 {
		os.Remove(path)
		return nil, fmt.Errorf("no extractable text in %s", originalName)
	}

	pageCount, err := PageCount(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	docID, err := s.db.CreateDocument(ctx, database.Document{
		UserID:           userID,
		Filename:         storedName,
		OriginalFilename: originalName,
		FilePath:         path,
		PageCount:        pageCount,
	})
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	chunks := s.splitter.Split(pages, docID, originalName)
	if err := store.Add(ctx, chunks); err != nil {
		if _, delErr := s.db.DeleteDocument(ctx, docID, userID); delErr != nil {
			s.logger.Error().Err(delErr).Int64("doc_id", docID).Msg("rollback of document row failed")
		}
		os.Remove(path)
		return nil, fmt.Errorf("index document: %w", err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("doc_id", docID).
		Str("filename", originalName).
		Int("pages", len(pages)).
		Int("chunks", len(chunks)).
		Msg("ingested document")

	return &UploadResult{
		DocID:      docID,
		Filename:   originalName,
		PageCount:  pageCount,
		ChunkCount: len(chunks),
	}, nil
}

// DeleteDocument removes the document row, its stored file, and all of its
// chunks from the user's vector store.
func (s *Service) DeleteDocument(ctx context.Context, userID, docID int64) error {
	doc, err := s.db.DocumentByID(ctx, docID, userID)
	if err != nil {
		return err
	}

	deleted, err := s.db.DeleteDocument(ctx, docID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return database.ErrNotFound
	}

	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", doc.FilePath).Msg("could not remove stored file")
	}

	store, err := s.stores.ForUser(userID)
	if err != nil {
		return err
	}
	if err := store.DeleteDocument(docID); err != nil {
		return fmt.Errorf("remove document chunks: %w", err)
	}

	s.logger.Info().Int64("user_id", userID).Int64("doc_id", docID).Msg("deleted document")
	return nil
}

// ClearDocuments removes every document the user has uploaded: the database
// rows, the stored files, and the entire vector index. Returns the number of
// documents removed.
func (s *Service) ClearDocuments(ctx context.Context, userID int64) (int, error) {
	docs, err := s.db.DocumentsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, doc := range docs {
		if _, err := s.db.DeleteDocument(ctx, doc.ID, userID); err != nil {
			return 0, err
		}
	}

	userDir := filepath.Join(s.uploadDir, fmt.Sprintf("user_%d", userID))
	if err := os.RemoveAll(userDir); err != nil {
		s.logger.Warn().Err(err).Str("path", userDir).Msg("could not remove upload directory")
	}

	store, err := s.stores.ForUser(userID)
	if err != nil {
		return 0, err
	}
	if err := store.Clear(); err != nil {
		return 0, fmt.Errorf("clear vector store: %w", err)
	}

	s.logger.Info().Int64("user_id", userID).Int("documents", len(docs)).Msg("cleared all documents")
	return len(docs), nil
}
