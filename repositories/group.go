//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
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

type IGroupRepository interface {
	CreateGroup(title string, members []string) (domain.Group, error)
	GetGroup(groupID string) (domain.Group, error)
	AddMember(groupID string, userID string) error
}

type GroupRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) GroupRepository {
	return GroupRepository{db: db, log: log}
}

type groupRecord struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

func groupKey(groupID string) []byte {
	return []byte("group:" + groupID)
}

func (r GroupRepository) CreateGroup(title string, members []string) (domain.Group, error) {
	if title == "" {
		return domain.Group{}, errors.Validationf("group title is empty")
	}
	group := domain.Group{
		ID:        uuid.NewString(),
		Title:     title,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		bytes, err := json.Marshal(fromGroup(group))
		if err != nil {
			return err
		}
		return txn.Set(groupKey(group.ID), bytes)
	})
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (r GroupRepository) GetGroup(groupID string) (domain.Group, error) {
	var group domain.Group
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := getGroup(txn, groupID)
		if err != nil {
			return err
		}
		group = found
		return nil
	})
	return group, err
}

func (r GroupRepository) AddMember(groupID string, userID string) error {
	for {
		err := r.db.Update(func(txn *badger.Txn) error {
			group, err := getGroup(txn, groupID)
			if err != nil {
				return err
			}
			if group.HasMember(userID) {
				return nil
			}
			group.Members = append(group.Members, userID)
			bytes, err := json.Marshal(fromGroup(group))
			if err != nil {
				return err
			}
			return txn.Set(groupKey(groupID), bytes)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

func getGroup(txn *badger.Txn, groupID string) (domain.Group, error) {
	item, err := txn.Get(groupKey(groupID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Group{}, errors.NotFoundf("group %s", groupID)
	}
	if err != nil {
		return domain.Group{}, err
	}
	var record groupRecord
	if err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, &record)
	}); err != nil {
		return domain.Group{}, err
	}
	return toGroup(record), nil
}

func fromGroup(group domain.Group) groupRecord {
	return groupRecord{
		ID:        group.ID,
		Title:     group.Title,
		Members:   group.Members,
		CreatedAt: group.CreatedAt.UnixNano(),
	}
}

func toGroup(record groupRecord) domain.Group {
	return domain.Group{
		ID:        record.ID,
		Title:     record.Title,
		Members:   record.Members,
		CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
	}
}
