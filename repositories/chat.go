//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/errors"
)

type IChatRepository interface {
	CreateChat(ownerID string, groupID *string) (domain.Chat, error)
	GetChat(chatID string) (domain.Chat, error)
	SetTitleOnce(chatID string, title string) (bool, error)
}

type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) ChatRepository {
	return ChatRepository{db: db, log: log}
}

// chatRecord is the persisted shape under "chat:{id}".
type chatRecord struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	GroupID   *string `json:"group_id,omitempty"`
	Title     *string `json:"title,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

func chatKey(chatID string) []byte {
	return []byte("chat:" + chatID)
}

// CreateChat persists a new conversation thread. A chat created inside a
// group requires the owner to already be a member of that group.
func (r ChatRepository) CreateChat(ownerID string, groupID *string) (domain.Chat, error) {
	chat := domain.Chat{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		GroupID:   groupID,
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if groupID != nil {
			group, err := getGroup(txn, *groupID)
			if err != nil {
				return err
			}
			if !group.HasMember(ownerID) {
				return errors.Validationf("owner %s is not a member of group %s", ownerID, *groupID)
			}
		}
		bytes, err := json.Marshal(fromChat(chat))
		if err != nil {
			return err
		}
		return txn.Set(chatKey(chat.ID), bytes)
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (r ChatRepository) GetChat(chatID string) (domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getChat(txn, chatID)
		if err != nil {
			return err
		}
		chat = found
		return nil
	})
	return chat, err
}

// SetTitleOnce performs the conditional title write. It returns false when a
// title already exists, which makes concurrent derivations idempotent: the
// first writer wins and every other result is discarded by the caller.
func (r ChatRepository) SetTitleOnce(chatID string, title string) (bool, error) {
	var set bool
	for {
		err := r.db.Update(func(txn *badger.Txn) error {
			set = false
			chat, err := getChat(txn, chatID)
			if err != nil {
				return err
			}
			if chat.Title != nil {
				return nil
			}
			chat.Title = &title
			bytes, err := json.Marshal(fromChat(chat))
			if err != nil {
				return err
			}
			if err := txn.Set(chatKey(chatID), bytes); err != nil {
				return err
			}
			set = true
			return nil
		})
		if stderrors.Is(err, badger.ErrConflict) {
			// Another writer raced us. Re-read and decide again.
			continue
		}
		return set, err
	}
}

func getChat(txn *badger.Txn, chatID string) (domain.Chat, error) {
	item, err := txn.Get(chatKey(chatID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, errors.NotFoundf("chat %s", chatID)
	}
	if err != nil {
		return domain.Chat{}, err
	}
	var record chatRecord
	if err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, &record)
	}); err != nil {
		return domain.Chat{}, err
	}
	return toChat(record), nil
}

func fromChat(chat domain.Chat) chatRecord {
	return chatRecord{
		ID:        chat.ID,
		OwnerID:   chat.OwnerID,
		GroupID:   chat.GroupID,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt.UnixNano(),
	}
}

func toChat(record chatRecord) domain.Chat {
	return domain.Chat{
		ID:        record.ID,
		OwnerID:   record.OwnerID,
		GroupID:   record.GroupID,
		Title:     record.Title,
		CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
	}
}
