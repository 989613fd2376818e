//go:generate go run go.uber.org/mock/mockgen -source=group_service.go -destination=../mocks/mock_group_service.go -package=mocks
package services

import (
	"log/slog"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/errors"
	"github.com/hphungg/chatbot-sub001/repositories"
)

type IGroupService interface {
	CreateGroup(identity domain.Identity, title string) (domain.Group, error)
	AddMember(groupID, userID string) error
	CreateChatInGroup(identity domain.Identity, groupID string) (domain.Chat, error)
	Resolve(identity domain.Identity, groupID, chatID string) (string, error)
}

// GroupService maps group-scoped thread operations onto the canonical chat
// model. Groups are an addressing layer: the chats themselves live in the
// same timeline store as individual ones.
type GroupService struct {
	groups repositories.IGroupRepository
	chats  repositories.IChatRepository
	log    *slog.Logger
}

func NewGroupService(groups repositories.IGroupRepository, chats repositories.IChatRepository, log *slog.Logger) *GroupService {
	return &GroupService{groups: groups, chats: chats, log: log}
}

// CreateGroup provisions a group with the creator as its first member.
func (s *GroupService) CreateGroup(identity domain.Identity, title string) (domain.Group, error) {
	return s.groups.CreateGroup(title, []string{identity.UserID})
}

func (s *GroupService) AddMember(groupID, userID string) error {
	return s.groups.AddMember(groupID, userID)
}

// CreateChatInGroup opens a new thread inside a group. The group must exist
// and the creator must be a member.
func (s *GroupService) CreateChatInGroup(identity domain.Identity, groupID string) (domain.Chat, error) {
	group, err := s.groups.GetGroup(groupID)
	if err != nil {
		return domain.Chat{}, err
	}
	if !group.HasMember(identity.UserID) {
		return domain.Chat{}, errors.Forbiddenf("user %s is not a member of group %s", identity.UserID, groupID)
	}
	return s.chats.CreateChat(identity.UserID, &groupID)
}

// Resolve validates that the chat belongs to the group and that the caller
// is a member, then returns the canonical path. Group-scoped URLs are
// aliases; the chat id alone is the address of record. A non-member never
// gets the redirect, so the alias leaks nothing about the chat.
func (s *GroupService) Resolve(identity domain.Identity, groupID, chatID string) (string, error) {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return "", err
	}
	if chat.GroupID == nil || *chat.GroupID != groupID {
		return "", errors.NotFoundf("chat %s in group %s", chatID, groupID)
	}
	group, err := s.groups.GetGroup(groupID)
	if err != nil {
		return "", err
	}
	if !group.HasMember(identity.UserID) {
		return "", errors.Forbiddenf("user %s is not a member of group %s", identity.UserID, groupID)
	}
	return chat.CanonicalPath(), nil
}
