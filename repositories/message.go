//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/hphungg/chatbot-sub001/codec"
	"github.com/hphungg/chatbot-sub001/domain"
)

type IMessageRepository interface {
	AppendMessage(chatID string, role domain.Role, parts []domain.Part) (domain.Message, error)
	ListMessages(chatID string) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// messageKey formats "msg:{chat_id}:{position_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order equals position order).
//  2. Keep the UUID as a collision disconnector; positions already make
//     keys unique, the UUID makes keys self-describing for inspection.
func messageKey(chatID string, position uint64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", chatID, position, id))
}

func sequenceKey(chatID string) []byte {
	return []byte("chatseq:" + chatID)
}

// AppendMessage commits a message at the next position of the chat. The
// position is allocated inside the same transaction that writes the message,
// so it is monotonic per chat and a failed commit never burns a position.
// Badger serializable conflicts between concurrent appends are retried.
func (r MessageRepository) AppendMessage(chatID string, role domain.Role, parts []domain.Part) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Role:      role,
		Parts:     parts,
		CreatedAt: time.Now().UTC(),
	}
	for {
		err := r.db.Update(func(txn *badger.Txn) error {
			if _, err := getChat(txn, chatID); err != nil {
				return err
			}
			next, err := nextPosition(txn, chatID)
			if err != nil {
				return err
			}
			message.Position = next
			if err := txn.Set(sequenceKey(chatID), []byte(strconv.FormatUint(next, 10))); err != nil {
				return err
			}
			bytes, err := codec.EncodeMessage(message)
			if err != nil {
				return err
			}
			return txn.Set(messageKey(chatID, next, message.ID), bytes)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			r.log.Debug("Append conflicted, retrying", "chat_id", chatID)
			continue
		}
		if err != nil {
			return domain.Message{}, err
		}
		return message, nil
	}
}

func nextPosition(txn *badger.Txn, chatID string) (uint64, error) {
	item, err := txn.Get(sequenceKey(chatID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	var current uint64
	if err := item.Value(func(value []byte) error {
		current, err = strconv.ParseUint(string(value), 10, 64)
		return err
	}); err != nil {
		return 0, err
	}
	return current + 1, nil
}

// ListMessages retrieves the full timeline of a chat using a prefix scan.
// Thanks to the padded position in the key, messages come back in creation
// order without any sorting step. This is the hydration source for a freshly
// opened client.
func (r MessageRepository) ListMessages(chatID string) ([]domain.Message, error) {
	var byteMessages [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		if _, err := getChat(txn, chatID); err != nil {
			return err
		}
		prefix := []byte("msg:" + chatID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if r.limitMessages != nil && len(byteMessages) == *r.limitMessages {
				r.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *r.limitMessages))
				break
			}
			if err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(byteMessages))
	for _, b := range byteMessages {
		message, err := codec.DecodeMessage(b)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}
