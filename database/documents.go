package database

import (
	"context"
	"fmt"
	"time"
)

type Document struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"-"`
	Filename         string    `json:"-"`
	OriginalFilename string    `json:"filename"`
	FilePath         string    `json:"-"`
	PageCount        int       `json:"page_count"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

type DocumentStats struct {
	TotalDocuments int `json:"total_documents"`
	TotalPages     int `json:"total_pages"`
	TotalChunks    int `json:"total_chunks"`
}

func (s *Store) CreateDocument(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (user_id, filename, original_filename, file_path, page_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, doc.UserID, doc.Filename, doc.OriginalFilename, doc.FilePath, doc.PageCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *Store) DocumentsByUser(ctx context.Context, userID int64) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, filename, original_filename, file_path, page_count, uploaded_at
		FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.OriginalFilename, &doc.FilePath, &doc.PageCount, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) DocumentByID(ctx context.Context, docID, userID int64) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, filename, original_filename, file_path, page_count, uploaded_at
		FROM documents WHERE id = $1 AND user_id = $2
	`, docID, userID).Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.OriginalFilename, &doc.FilePath, &doc.PageCount, &doc.UploadedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query document: %w", err)
	}
	return &doc, nil
}

func (s *Store) DeleteDocument(ctx context.Context, docID, userID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1 AND user_id = $2", docID, userID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DocumentTotals reports document and page counts for a user; the chunk
// total comes from the vector store, not from here.
func (s *Store) DocumentTotals(ctx context.Context, userID int64) (documents, pages int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(page_count), 0)
		FROM documents WHERE user_id = $1
	`, userID).Scan(&documents, &pages)
	if err != nil {
		return 0, 0, fmt.Errorf("query document totals: %w", err)
	}
	return documents, pages, nil
}
