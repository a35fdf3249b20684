package store

import (
	"context"
	"strconv"
	"strings"
)

// Keys used by the games and the launcher.
const (
	KeyWhackAMoleMaxScore = "whackAMoleMaxScore"
	KeyTypingTestBestWPM  = "typingTestBestWPM"
	KeyMemoryBest         = "memoryBest"
	KeyMemoryLastScore    = "memoryLastScore"
	KeyLastGame           = "lastGame"
)

// Store is a string key/value store. Implementations must be thread-safe.
type Store interface {
	// Get returns the value stored at key, or an *ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// GetInt reads an integer value. ok is false when the key is missing or the
// stored value does not parse. err is only set for store failures.
func GetInt(ctx context.Context, s Store, key string) (value int, ok bool, err error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	value, err = parseLeadingInt(raw)
	if err != nil {
		return 0, false, nil
	}
	return value, true, nil
}

// SetInt writes an integer value.
func SetInt(ctx context.Context, s Store, key string, value int) error {
	return s.Set(ctx, key, strconv.Itoa(value))
}

// parseLeadingInt accepts the leading integer of a string, so values such as
// "12px" or " 7" parse like they would in a browser.
func parseLeadingInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) {
		c := raw[end]
		if (c == '-' || c == '+') && end == 0 {
			end++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		end++
	}
	return strconv.Atoi(raw[:end])
}
