package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/hphungg/chatbot-sub001/codec"
)

// chatRow mirrors the persisted shape under "chat:{id}".
type chatRow struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"owner_id"`
	GroupID *string `json:"group_id,omitempty"`
	Title   *string `json:"title,omitempty"`
}

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// Default to "msg:" so the timeline shows up without clobbering chat records
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, chat:, group:, chatseq:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf("  ====== Badger dump %q ======", *prefix)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Chat ID", "Role", "Pos", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				table.Append(describe(rawKey, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe renders one row per record, decoding by key family.
func describe(rawKey string, v []byte) []string {
	switch {
	case strings.HasPrefix(rawKey, "msg:"):
		message, err := codec.DecodeMessage(v)
		if err != nil {
			// Don't stop the whole dump on one bad record, show it raw instead
			return []string{rawKey, "MSG", "", "", "", "", fmt.Sprintf("decode error: %v", err)}
		}
		detail := message.Text()
		if detail == "" {
			detail = fmt.Sprintf("(%d non-text parts)", len(message.Parts))
		}
		return []string{
			rawKey,
			"MSG",
			message.CreatedAt.Format("15:04:05"),
			shorten(message.ChatID),
			string(message.Role),
			fmt.Sprintf("%d", message.Position),
			detail,
		}

	case strings.HasPrefix(rawKey, "chat:"):
		var chat chatRow
		if err := json.Unmarshal(v, &chat); err != nil {
			return []string{rawKey, "CHAT", "", "", "", "", fmt.Sprintf("decode error: %v", err)}
		}
		title := "(untitled)"
		if chat.Title != nil {
			title = *chat.Title
		}
		scope := "personal"
		if chat.GroupID != nil {
			scope = "group " + shorten(*chat.GroupID)
		}
		return []string{rawKey, "CHAT", "", shorten(chat.ID), scope, "", title}

	case strings.HasPrefix(rawKey, "chatseq:"):
		return []string{rawKey, "SEQ", "", "", "", string(v), ""}

	default:
		return []string{rawKey, "RAW", "", "", "", "", string(v)}
	}
}

// shorten trims an id to its first 8 characters for readability.
func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
