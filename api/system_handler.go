package api

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/hphungg/chatbot-sub001/errors"
	"github.com/hphungg/chatbot-sub001/observability"
	"github.com/hphungg/chatbot-sub001/search"
)

type SystemHandler struct {
	index      *search.Index
	monitoring *observability.MonitoringManager
	log        *slog.Logger
}

func NewSystemHandler(index *search.Index, monitoring *observability.MonitoringManager, log *slog.Logger) *SystemHandler {
	return &SystemHandler{index: index, monitoring: monitoring, log: log}
}

func (h *SystemHandler) Ping(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"message": "pong"})
}

// Stats handles GET /stats, the monitoring snapshot.
func (h *SystemHandler) Stats(_ context.Context, c *app.RequestContext) {
	SuccessResponse(c, h.monitoring.Snapshot())
}

type searchHit struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Position  uint64 `json:"position"`
}

type searchResponse struct {
	Hits  []searchHit `json:"hits"`
	Total uint64      `json:"total"`
}

// Search handles GET /api/v1/search?q=...&chatId=...&offset=N over the
// committed-message index.
func (h *SystemHandler) Search(ctx context.Context, c *app.RequestContext) {
	terms := c.Query("q")
	chatID := c.Query("chatId")

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ErrorResponse(c, errors.Validationf("offset must be a non-negative integer"))
			return
		}
		offset = parsed
	}

	h.monitoring.IncrSearchQueries()
	hits, total, err := h.index.Search(ctx, terms, chatID, offset)
	if err != nil {
		ErrorResponse(c, err)
		return
	}

	response := searchResponse{Hits: make([]searchHit, 0, len(hits)), Total: total}
	for _, hit := range hits {
		response.Hits = append(response.Hits, searchHit{
			MessageID: hit.MessageID.String(),
			ChatID:    hit.ChatID,
			Role:      string(hit.Role),
			Content:   hit.Content,
			Position:  hit.Position,
		})
	}
	SuccessResponse(c, response)
}
