package telegram

import (
	"sync"
	"time"
)

// debounce is how long after the last photo of an album we wait before
// processing the batch. Telegram delivers album photos as separate updates.
const debounce = 1200 * time.Millisecond

type photoBatch struct {
	ChatID       int64
	Key          string // "grp:<mediaGroupID>" | "chat:<chatID>"
	MediaGroupID string

	mu     sync.Mutex
	images [][]byte
	names  []string
	timer  *time.Timer
}

var batches sync.Map // key -> *photoBatch
