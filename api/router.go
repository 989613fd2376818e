package api

import (
	"log/slog"

	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/hphungg/chatbot-sub001/auth"
)

// Setup wires every route. Health and stats stay open; everything touching
// chats or groups runs behind the bearer-token middleware.
func Setup(
	h *server.Hertz,
	tokens *auth.TokenManager,
	chatHandler *ChatHandler,
	groupHandler *GroupHandler,
	systemHandler *SystemHandler,
	log *slog.Logger,
) {
	h.GET("/ping", systemHandler.Ping)
	h.GET("/stats", systemHandler.Stats)

	authenticated := auth.Middleware(tokens, log)

	apiV1 := h.Group("/api/v1", authenticated)
	{
		apiV1.POST("/chats", chatHandler.CreateChat)
		apiV1.POST("/groups", groupHandler.CreateGroup)
		apiV1.POST("/groups/:id/members", groupHandler.AddMember)
		apiV1.GET("/search", systemHandler.Search)
	}

	chat := h.Group("/chat", authenticated)
	{
		// Group-scoped addressing first: hertz would otherwise capture
		// "group" as a chat id.
		chat.POST("/group/:groupId/new", groupHandler.NewChatInGroup)
		chat.GET("/group/:groupId/chat/:chatId", groupHandler.ResolveChat)

		chat.GET("/:id", chatHandler.History)
		chat.POST("/:id/messages", chatHandler.SendMessage)
		chat.GET("/:id/stream", chatHandler.Stream)
		chat.POST("/:id/stop", chatHandler.Stop)
	}
}
