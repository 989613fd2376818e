package api

import (
	"context"
	"log/slog"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"

	"github.com/hphungg/chatbot-sub001/auth"
	"github.com/hphungg/chatbot-sub001/errors"
	"github.com/hphungg/chatbot-sub001/services"
)

type GroupHandler struct {
	groups    services.IGroupService
	validator *validator.Validate
	log       *slog.Logger
}

func NewGroupHandler(groups services.IGroupService, log *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, validator: validator.New(), log: log}
}

type createGroupRequest struct {
	Title string `json:"title" validate:"required,max=120"`
}

type groupResponse struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Members []string `json:"members"`
}

// CreateGroup handles POST /api/v1/groups.
func (h *GroupHandler) CreateGroup(_ context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}

	var req createGroupRequest
	if err := c.BindJSON(&req); err != nil {
		ErrorResponse(c, errors.Validationf("malformed body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		ErrorResponse(c, errors.Validationf("invalid group: %v", err))
		return
	}

	group, err := h.groups.CreateGroup(identity, req.Title)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	CreatedResponse(c, groupResponse{ID: group.ID, Title: group.Title, Members: group.Members})
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// AddMember handles POST /api/v1/groups/:id/members.
func (h *GroupHandler) AddMember(_ context.Context, c *app.RequestContext) {
	if _, ok := auth.IdentityFrom(c); !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}
	groupID := c.Param("id")

	var req addMemberRequest
	if err := c.BindJSON(&req); err != nil {
		ErrorResponse(c, errors.Validationf("malformed body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		ErrorResponse(c, errors.Validationf("invalid member: %v", err))
		return
	}

	if err := h.groups.AddMember(groupID, req.UserID); err != nil {
		ErrorResponse(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// NewChatInGroup handles POST /chat/group/:groupId/new: creates the thread
// and sends the client to its canonical address with a temporary redirect.
func (h *GroupHandler) NewChatInGroup(_ context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}
	groupID := c.Param("groupId")

	chat, err := h.groups.CreateChatInGroup(identity, groupID)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	c.Redirect(consts.StatusFound, []byte(chat.CanonicalPath()))
}

// ResolveChat handles GET /chat/group/:groupId/chat/:chatId, the legacy
// group-scoped address. Valid pairs move permanently to the canonical path
// once membership is established; anything else answers without a redirect.
func (h *GroupHandler) ResolveChat(_ context.Context, c *app.RequestContext) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		ErrorResponse(c, errors.ErrUnauthenticated)
		return
	}

	path, err := h.groups.Resolve(identity, c.Param("groupId"), c.Param("chatId"))
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	c.Redirect(consts.StatusMovedPermanently, []byte(path))
}
