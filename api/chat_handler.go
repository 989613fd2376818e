package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"
	"github.com/go-playground/validator/v10"

	"github.com/hphungg/chatbot-sub001/auth"
	"github.com/hphungg/chatbot-sub001/codec"
	"github.com/hphungg/chatbot-sub001/errors"
	"github.com/hphungg/chatbot-sub001/observability"
	"github.com/hphungg/chatbot-sub001/runtime"
	"github.com/hphungg/chatbot-sub001/services"
)

type ChatHandler struct {
	chats            services.IChatService
	titles           services.ITitleService
	monitoring       *observability.MonitoringManager
	validator        *validator.Validate
	log              *slog.Logger
	maxContentLength int
}

func NewChatHandler(
	chats services.IChatService,
	titles services.ITitleService,
	monitoring *observability.MonitoringManager,
	log *slog.Logger,
	maxContentLength int,
) *ChatHandler {
	return &ChatHandler{
		chats:            chats,
		titles:           titles,
		monitoring:       monitoring,
		validator:        validator.New(),
		log:              log,
		maxContentLength: maxContentLength,
	}
}

type createChatRequest struct {
	GroupID *string `json:"groupId"`
}

type chatResponse struct {
	ID            string  `json:"id"`
	OwnerID       string  `json:"ownerId"`
	GroupID       *string `json:"groupId,omitempty"`
	Title         *string `json:"title,omitempty"`
	CanonicalPath string  `json:"canonicalPath"`
}

// CreateChat handles POST /api/v1/chats.
func (h *ChatHandler) CreateChat(_ context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}

	var req createChatRequest
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(&req); err != nil {
			ErrorResponse(c, errors.Validationf("malformed body: %v", err))
			return
		}
	}

	chat, err := h.chats.CreateChat(identity, req.GroupID)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	h.monitoring.IncrChatsCreated()
	CreatedResponse(c, chatResponse{
		ID:            chat.ID,
		OwnerID:       chat.OwnerID,
		GroupID:       chat.GroupID,
		Title:         chat.Title,
		CanonicalPath: chat.CanonicalPath(),
	})
}

type historyResponse struct {
	ID       string            `json:"id"`
	Title    string            `json:"title,omitempty"`
	Messages []codec.UIMessage `json:"messages"`
}

// History handles GET /chat/:id, the hydration endpoint for a freshly
// opened client.
func (h *ChatHandler) History(ctx context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}
	chatID := c.Param("id")

	messages, err := h.chats.History(ctx, identity, chatID)
	if err != nil {
		ErrorResponse(c, err)
		return
	}

	// Hydration is the natural moment for lazy title derivation.
	title, err := h.titles.EnsureTitle(ctx, chatID)
	if err != nil {
		h.log.Warn("Resolving title failed", "chat_id", chatID, "error", err)
	}

	SuccessResponse(c, historyResponse{ID: chatID, Title: title, Messages: messages})
}

type attachmentRequest struct {
	Data      []byte `json:"data" validate:"required"`
	MediaType string `json:"mediaType"`
}

type sendMessageRequest struct {
	Text        string              `json:"text" validate:"required_without=Attachments"`
	Attachments []attachmentRequest `json:"attachments" validate:"dive"`
}

// SendMessage handles POST /chat/:id/messages: one conversation turn,
// streamed back as SSE. A turn already in flight answers 409 and the client
// should attach to /chat/:id/stream instead.
func (h *ChatHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}
	chatID := c.Param("id")

	var req sendMessageRequest
	if err := c.BindJSON(&req); err != nil {
		ErrorResponse(c, errors.Validationf("malformed body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		ErrorResponse(c, errors.Validationf("invalid message: %v", err))
		return
	}
	if h.maxContentLength > 0 && len(req.Text) > h.maxContentLength {
		ErrorResponse(c, errors.Validationf("text exceeds %d bytes", h.maxContentLength))
		return
	}

	attachments := make([]codec.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, codec.Attachment{Data: a.Data, MediaType: a.MediaType})
	}

	_, session, err := h.chats.SendMessage(ctx, identity, chatID, req.Text, attachments)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	h.monitoring.IncrGenerationsStarted()

	h.streamSession(ctx, c, session.Subscribe(ctx, 0), 0)
}

// Stream handles GET /chat/:id/stream: reconnect to the live session from a
// session-relative offset.
func (h *ChatHandler) Stream(ctx context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}
	chatID := c.Param("id")

	from := 0
	if raw := c.Query("from"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ErrorResponse(c, errors.Validationf("from must be a non-negative integer"))
			return
		}
		from = parsed
	}

	subscription, err := h.chats.Attach(ctx, identity, chatID, from)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	h.monitoring.IncrStreamAttaches()

	h.streamSession(ctx, c, subscription, from)
}

// Stop handles POST /chat/:id/stop, the cooperative cancel.
func (h *ChatHandler) Stop(_ context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}
	chatID := c.Param("id")

	if err := h.chats.Cancel(identity, chatID); err != nil {
		ErrorResponse(c, err)
		return
	}
	SuccessResponse(c, nil)
}

type doneEvent struct {
	MessageID string `json:"messageId"`
}

type errorEvent struct {
	Code string `json:"code"`
}

// streamSession relays a subscription as SSE: one "part" event per output
// part, then a terminal "done" or "error" event. Event ids are the
// session-relative positions, so they continue from the attach offset and a
// client can derive its next reconnect offset from the last id it saw.
func (h *ChatHandler) streamSession(_ context.Context, c *app.RequestContext, subscription *runtime.Subscription, from int) {
	c.SetStatusCode(consts.StatusOK)
	writer := sse.NewWriter(c)
	defer func() {
		if err := writer.Close(); err != nil {
			h.log.Debug("Closing SSE writer failed", "error", err)
		}
	}()

	position := from
	for part := range subscription.C {
		payload, err := json.Marshal(codec.ToUIPart(part))
		if err != nil {
			h.log.Warn("Encoding part failed", "error", err)
			continue
		}
		if err := writer.WriteEvent(strconv.Itoa(position), "part", payload); err != nil {
			// Client is gone. The generation keeps running for the next attach.
			h.log.Debug("SSE write failed, dropping subscriber", "error", err)
			return
		}
		position++
	}

	if err := subscription.Err(); err != nil {
		payload, _ := json.Marshal(errorEvent{Code: taxonomyCode(err)})
		if err := writer.WriteEvent("", "error", payload); err != nil {
			h.log.Debug("SSE terminal write failed", "error", err)
		}
		return
	}

	payload, _ := json.Marshal(doneEvent{MessageID: subscription.CommittedMessageID().String()})
	if err := writer.WriteEvent("", "done", payload); err != nil {
		h.log.Debug("SSE terminal write failed", "error", err)
	}
}
