package usecase

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
	pageTokenPrefix  = "o:"
)

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxPageLimit)
}

// encodePageToken hides the offset of the next page behind an opaque token.
func encodePageToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(pageTokenPrefix + strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed page token", ErrInvalidInput)
	}
	value, ok := strings.CutPrefix(string(raw), pageTokenPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: malformed page token", ErrInvalidInput)
	}
	offset, err := strconv.Atoi(value)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: malformed page token", ErrInvalidInput)
	}
	return offset, nil
}

// nextPageToken trims a limit+1 probe and returns the token for the following page.
func nextPageToken[T any](items []T, offset, limit int) ([]T, string) {
	if len(items) <= limit {
		return items, ""
	}
	return items[:limit], encodePageToken(offset + limit)
}
