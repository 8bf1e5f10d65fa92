// Package pagination implements keyset pagination over snowflake ids, which
// are time ordered, so "id < cursor" walks newest to oldest.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string
	PageSize  int
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func (p Pagination) Size() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Apply filters stmt to the page after the cursor and fetches one extra row
// so Page can tell whether more rows exist.
func (p Pagination) Apply(stmt *gorm.DB) (*gorm.DB, error) {
	if p.PageToken != "" {
		cursor, err := DecodeToken(p.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("id < ?", cursor)
	}
	return stmt.Order("id DESC").Limit(p.Size() + 1), nil
}

// Page trims the look-ahead row and builds the PageInfo.
func Page[T any](p Pagination, items []T, idOf func(T) snowflake.ID) ([]T, *PageInfo) {
	size := p.Size()
	if len(items) <= size {
		return items, &PageInfo{}
	}
	items = items[:size]
	return items, &PageInfo{
		NextPageToken: EncodeToken(idOf(items[len(items)-1])),
		HasMore:       true,
	}
}

func EncodeToken(id snowflake.ID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

func DecodeToken(token string) (snowflake.ID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidPageToken
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidPageToken
	}
	return snowflake.ID(id), nil
}
