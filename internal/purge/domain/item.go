// Package domain holds the records a purge run moves around: the candidate
// items read from the account, the entries written to the deletion ledger,
// and the criteria used to narrow a run down.
package domain

import (
	"strings"
	"time"
)

// Item is a single deletable tweet.
// ID is the only identity key; Text and CreatedAt are informational.
type Item struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Preview returns the first n runes of the text with newlines flattened.
func (i Item) Preview(n int) string {
	text := strings.ReplaceAll(i.Text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if n > 0 && len(runes) > n {
		return string(runes[:n])
	}
	return text
}

// Dedupe removes items whose ID was already seen, keeping the first
// occurrence and the original order. Items with an empty ID are dropped.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// User is the authenticated account.
type User struct {
	ID     string
	Handle string
}

// LedgerEntry records one successful deletion.
type LedgerEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"created_at,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}

// NewLedgerEntry copies the item fields and stamps the deletion time.
func NewLedgerEntry(item Item, deletedAt time.Time) LedgerEntry {
	return LedgerEntry{
		ID:        item.ID,
		Text:      item.Text,
		CreatedAt: item.CreatedAt,
		DeletedAt: deletedAt.UTC(),
	}
}
