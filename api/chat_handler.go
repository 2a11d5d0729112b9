package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docqa/database"
	"docqa/llm"
	"docqa/rag"
	"docqa/vectorstore"
)

// historyTurns is how many prior question/answer pairs of the session are
// replayed to the model on each query.
const historyTurns = 5

const defaultHistoryLimit = 50

type ChatHandler struct {
	db     *database.Store
	stores *vectorstore.Manager
	llm    llm.Client
	topK   int
	logger zerolog.Logger
}

func NewChatHandler(db *database.Store, stores *vectorstore.Manager, client llm.Client, topK int, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		db:     db,
		stores: stores,
		llm:    client,
		topK:   topK,
		logger: logger,
	}
}

type queryRequest struct {
	Question  string `json:"question" validate:"required"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string       `json:"answer"`
	Sources   []rag.Source `json:"sources"`
	SessionID string       `json:"session_id"`
}

func (h *ChatHandler) handleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	userID := currentUserID(c)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := h.sessionMessages(c, userID, sessionID)
	if err != nil {
		return err
	}

	store, err := h.stores.ForUser(userID)
	if err != nil {
		return err
	}

	pipeline := rag.NewPipeline(store, h.llm, h.topK, h.logger)
	result, err := pipeline.Query(c.Context(), req.Question, history)
	if err != nil {
		return err
	}

	sources, err := json.Marshal(result.Sources)
	if err != nil {
		return err
	}

	if _, err := h.db.SaveChatEntry(c.Context(), database.ChatEntry{
		UserID:    userID,
		SessionID: sessionID,
		Question:  req.Question,
		Answer:    result.Answer,
		Sources:   sources,
	}); err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("could not persist chat entry")
	}

	return c.JSON(queryResponse{
		Answer:    result.Answer,
		Sources:   result.Sources,
		SessionID: sessionID,
	})
}

// sessionMessages replays the session's recent turns as alternating user and
// assistant messages, oldest first.
func (h *ChatHandler) sessionMessages(c *fiber.Ctx, userID int64, sessionID string) ([]llm.Message, error) {
	entries, err := h.db.SessionHistory(c.Context(), userID, sessionID, historyTurns)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(entries)*2)
	for _, entry := range entries {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: entry.Question},
			llm.Message{Role: llm.RoleAssistant, Content: entry.Answer},
		)
	}
	return messages, nil
}

func (h *ChatHandler) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	entries, err := h.db.HistoryByUser(c.Context(), currentUserID(c), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": entries})
}

func (h *ChatHandler) handleSessions(c *fiber.Ctx) error {
	sessions, err := h.db.Sessions(c.Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *ChatHandler) handleSessionHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return ErrBadRequest("missing session id")
	}

	entries, err := h.db.SessionHistory(c.Context(), currentUserID(c), sessionID, defaultHistoryLimit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session_id": sessionID, "history": entries})
}

func (h *ChatHandler) handleClear(c *fiber.Ctx) error {
	deleted, err := h.db.ClearHistory(c.Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}
