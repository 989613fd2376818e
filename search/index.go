// Package search maintains the full-text index over chat messages. Badger
// stays the source of truth; the bluge index is a derived view fed by the
// event fanout, so a search hit always points back to a real message.
package search

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"github.com/hphungg/chatbot-sub001/domain"
	"github.com/hphungg/chatbot-sub001/errors"
)

const defaultLimit = 10

// Hit is one search result, carrying enough stored fields to render a
// result line without a badger round trip.
type Hit struct {
	MessageID uuid.UUID
	ChatID    string
	Role      domain.Role
	Content   string
	Position  uint64
}

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

func NewIndex(writer *bluge.Writer, log *slog.Logger, limit int) *Index {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Index{writer: writer, log: log, limit: limit}
}

// IndexMessage upserts one message document. Only the textual content is
// analyzed; chat id and role are exact-match fields used for scoping.
func (i *Index) IndexMessage(message domain.Message) error {
	content := message.Text()
	if content == "" {
		// Tool traffic and pure attachments carry no searchable text.
		return nil
	}

	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("chat_id", message.ChatID).StoreValue()).
		AddField(bluge.NewKeywordField("role", string(message.Role)).StoreValue()).
		AddField(bluge.NewTextField("content", content).StoreValue()).
		AddField(bluge.NewKeywordField("position", strconv.FormatUint(message.Position, 10)).StoreValue())

	return i.writer.Update(doc.ID(), doc)
}

// IndexTitle upserts the chat's derived title as its own document. Titles
// are written at most once per chat, so the fixed document id is stable.
func (i *Index) IndexTitle(chatID string, title string) error {
	if title == "" {
		return nil
	}

	doc := bluge.NewDocument("title:" + chatID).
		AddField(bluge.NewKeywordField("chat_id", chatID).StoreValue()).
		AddField(bluge.NewKeywordField("role", "title").StoreValue()).
		AddField(bluge.NewTextField("content", title).StoreValue())

	return i.writer.Update(doc.ID(), doc)
}

// Search runs a match query over message content, scoped to one chat when
// chatID is non-empty. offset enables pagination; the total reports how many
// documents matched overall.
func (i *Index) Search(ctx context.Context, terms string, chatID string, offset int) ([]Hit, uint64, error) {
	if terms == "" {
		return nil, 0, errors.Validationf("search terms must not be empty")
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing index reader failed", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))
	if chatID != "" {
		query.AddMust(bluge.NewTermQuery(chatID).SetField("chat_id"))
	}

	request := bluge.NewTopNSearch(i.limit, query).
		SetFrom(offset).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}

		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "chat_id":
				hit.ChatID = string(value)
			case "role":
				hit.Role = domain.Role(value)
			case "content":
				hit.Content = string(value)
			case "position":
				if position, parseErr := strconv.ParseUint(string(value), 10, 64); parseErr == nil {
					hit.Position = position
				}
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}

	return hits, iterator.Aggregations().Count(), nil
}
