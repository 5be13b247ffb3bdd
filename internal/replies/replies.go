// Package replies holds the transient ActiveReply state: which conversation
// a staff member's Telegram chat is currently replying to.
//
// The state is process-local and deliberately not persisted: losing it on
// restart only means the staff member must press the Reply button again.
// In a multi-process deployment this store would need to move to a shared,
// externally expiring key-value store to keep reply continuity across
// processes.
package replies

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store maps a staff chat id to the conversation id the staff member is
// composing a reply for. Entries expire after a fixed TTL; expiry is
// checked on read and expired entries are swept only when the store reaches
// its size cap.
type Store struct {
	maxSize int
	cache   *gocache.Cache
}

// NewStore builds a Store with the given entry TTL and size cap.
func NewStore(ttl time.Duration, maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Store{
		maxSize: maxSize,
		cache:   gocache.New(ttl, 0), // no janitor: sweep happens on Set
	}
}

// Set records that the staff chat is replying to the conversation,
// replacing any previous target.
func (s *Store) Set(chatID int64, conversationID string) {
	if s.cache.ItemCount() >= s.maxSize {
		s.cache.DeleteExpired()
	}
	s.cache.Set(key(chatID), conversationID, gocache.DefaultExpiration)
}

// Get returns the conversation the staff chat is replying to, if any
// unexpired entry exists.
func (s *Store) Get(chatID int64) (string, bool) {
	v, ok := s.cache.Get(key(chatID))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Clear drops the entry after the reply has been queued.
func (s *Store) Clear(chatID int64) {
	s.cache.Delete(key(chatID))
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
