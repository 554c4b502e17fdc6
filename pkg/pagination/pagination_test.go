package pagination

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageNormalizes(t *testing.T) {
	p := NewPage(0, 0)
	assert.Equal(t, Page{Page: 1, Limit: DefaultLimit}, p)

	p = NewPage(3, 500)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 2*MaxLimit, p.Offset())
}

func TestTotalPages(t *testing.T) {
	p := NewPage(1, 20)
	for total, want := range map[int64]int{0: 0, 1: 1, 20: 1, 21: 2, 100: 5} {
		assert.Equal(t, want, p.TotalPages(total), "total %d", total)
	}
}

func TestNewResultEncodesEmptyPageAsArray(t *testing.T) {
	res := NewResult[int](NewPage(2, 10), 0, nil)
	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"total":0,"page":2,"limit":10,"totalPages":0}`, string(body))
}

func TestCursorIsQuerySafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC), ID: uuid.New()}
	encoded := in.Encode()
	assert.Equal(t, encoded, url.QueryEscape(encoded))

	out, err := ParseCursor(encoded)
	require.NoError(t, err)
	assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	blank, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, blank)

	for _, bad := range []string{"bad", "!!", Cursor{}.Encode()[:4]} {
		_, err := ParseCursor(bad)
		assert.Error(t, err, bad)
	}
}

func TestWindowAndTrim(t *testing.T) {
	size, fetch := Window(2)
	assert.Equal(t, 2, size)
	assert.Equal(t, 3, fetch)

	key := func(n int) Cursor { return Cursor{ID: uuid.NewSHA1(uuid.Nil, []byte{byte(n)})} }

	rows, next := Trim([]int{1, 2, 3}, size, key)
	assert.Equal(t, []int{1, 2}, rows)
	require.NotNil(t, next)
	assert.Equal(t, key(2).ID, next.ID)

	rows, next = Trim([]int{1, 2}, size, key)
	assert.Equal(t, []int{1, 2}, rows)
	assert.Nil(t, next)
}
