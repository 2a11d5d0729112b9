package api

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"docqa/database"
	"docqa/ingestion"
	"docqa/llm"
	"docqa/rag"
	"docqa/vectorstore"
)

type DocumentHandler struct {
	db       *database.Store
	ingester *ingestion.Service
	stores   *vectorstore.Manager
	llm      llm.Client
	topK     int
	logger   zerolog.Logger
}

func NewDocumentHandler(db *database.Store, ingester *ingestion.Service, stores *vectorstore.Manager, client llm.Client, topK int, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		db:       db,
		ingester: ingester,
		stores:   stores,
		llm:      client,
		topK:     topK,
		logger:   logger,
	}
}

type uploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type uploadResponse struct {
	Uploaded []ingestion.UploadResult `json:"uploaded"`
	Failed   []uploadFailure          `json:"failed,omitempty"`
}

// handleUpload accepts one or more PDF files under the "files" form field.
// Files are processed independently; a bad file does not fail the batch.
func (h *DocumentHandler) handleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return ErrBadRequest("expected multipart form upload")
	}

	files := form.File["files"]
	if len(files) == 0 {
		return ErrBadRequest("no files provided under the 'files' field")
	}

	userID := currentUserID(c)
	resp := uploadResponse{Uploaded: []ingestion.UploadResult{}}

	for _, header := range files {
		name := filepath.Base(header.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			resp.Failed = append(resp.Failed, uploadFailure{Filename: name, Error: "only PDF files are supported"})
			continue
		}

		file, err := header.Open()
		if err != nil {
			resp.Failed = append(resp.Failed, uploadFailure{Filename: name, Error: "could not read upload"})
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			resp.Failed = append(resp.Failed, uploadFailure{Filename: name, Error: "could not read upload"})
			continue
		}

		result, err := h.ingester.IngestPDF(c.Context(), userID, name, data)
		if err != nil {
			h.logger.Warn().Err(err).Str("filename", name).Int64("user_id", userID).Msg("upload rejected")
			resp.Failed = append(resp.Failed, uploadFailure{Filename: name, Error: err.Error()})
			continue
		}
		resp.Uploaded = append(resp.Uploaded, *result)
	}

	status := fiber.StatusCreated
	if len(resp.Uploaded) == 0 {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(resp)
}

func (h *DocumentHandler) handleList(c *fiber.Ctx) error {
	docs, err := h.db.DocumentsByUser(c.Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"documents": docs})
}

func (h *DocumentHandler) handleGet(c *fiber.Ctx) error {
	docID, err := c.ParamsInt("id")
	if err != nil || docID <= 0 {
		return ErrBadRequest("invalid document id")
	}

	doc, err := h.db.DocumentByID(c.Context(), int64(docID), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) handleDelete(c *fiber.Ctx) error {
	docID, err := c.ParamsInt("id")
	if err != nil || docID <= 0 {
		return ErrBadRequest("invalid document id")
	}

	if err := h.ingester.DeleteDocument(c.Context(), currentUserID(c), int64(docID)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": docID})
}

func (h *DocumentHandler) handleClearAll(c *fiber.Ctx) error {
	removed, err := h.ingester.ClearDocuments(c.Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": removed})
}

func (h *DocumentHandler) handleStats(c *fiber.Ctx) error {
	userID := currentUserID(c)

	documents, pages, err := h.db.DocumentTotals(c.Context(), userID)
	if err != nil {
		return err
	}

	store, err := h.stores.ForUser(userID)
	if err != nil {
		return err
	}

	return c.JSON(database.DocumentStats{
		TotalDocuments: documents,
		TotalPages:     pages,
		TotalChunks:    store.ChunkCount(),
	})
}

func (h *DocumentHandler) handleSummarize(c *fiber.Ctx) error {
	docID, err := c.ParamsInt("id")
	if err != nil || docID <= 0 {
		return ErrBadRequest("invalid document id")
	}

	userID := currentUserID(c)
	doc, err := h.db.DocumentByID(c.Context(), int64(docID), userID)
	if err != nil {
		return err
	}

	store, err := h.stores.ForUser(userID)
	if err != nil {
		return err
	}

	pipeline := rag.NewPipeline(store, h.llm, h.topK, h.logger)
	summary, err := pipeline.SummarizeDocument(c.Context(), doc.ID, doc.OriginalFilename)
	if err != nil {
		if !errors.Is(err, rag.ErrNotFound) {
			return err
		}
		summary = rag.NotFoundMessage
	}

	return c.JSON(fiber.Map{
		"id":       doc.ID,
		"filename": doc.OriginalFilename,
		"summary":  summary,
	})
}
