package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/penpal/backend/internal/store"
	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
)

// Page tokens are "<ms>.<id>" for the last item of a page, where ms is its
// millisecond timestamp. A bare "<ms>" token is still accepted and resumes
// after every item at that millisecond. Callers treat tokens as opaque.

func formatPageToken(t time.Time, id string) *string {
	token := strconv.FormatInt(t.UnixMilli(), 10) + "." + id
	return &token
}

func parsePageToken(raw string) (*store.Cursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	msPart, id, hasID := strings.Cut(raw, ".")
	if hasID && id == "" {
		return nil, appErrors.ErrInvalidPageToken
	}
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil || ms < 0 {
		return nil, appErrors.ErrInvalidPageToken
	}
	return &store.Cursor{Time: time.UnixMilli(ms).UTC(), ID: id}, nil
}

// pageSize applies the default to missing or non-positive sizes and clamps large ones.
func (s *Service) pageSize(requested int) int {
	if requested <= 0 {
		return s.cfg.DefaultPageSize
	}
	if requested > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return requested
}
