package pagination

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token := EncodeToken(snowflake.ID(1789))
	id, err := DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(1789), id)

	_, err = DecodeToken("!!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestPageTrimsLookAhead(t *testing.T) {
	ids := []snowflake.ID{9, 8, 7}
	page, info := Page(Pagination{PageSize: 2}, ids, func(id snowflake.ID) snowflake.ID { return id })

	assert.Equal(t, []snowflake.ID{9, 8}, page)
	assert.True(t, info.HasMore)

	next, err := DecodeToken(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(8), next)

	page, info = Page(Pagination{PageSize: 5}, ids, func(id snowflake.ID) snowflake.ID { return id })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestSizeBounds(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Size())
}
