package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSongsEndpointReportsHasMore(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		env.mustCreateSong(t, title, "Paging Band")
	}
	search := MakeSearchSongsEndpoint(env.songs)

	// First page of two out of three
	resp, err := search(ctx, Search{Search: "Paging", Pagination: Pagination{Limit: 2}})
	require.NoError(t, err)
	page := resp.(basicResponse).Data.(searchResponse)
	assert.Equal(t, uint(3), page.Rows)
	assert.True(t, page.HasMore)

	// Last page
	resp, err = search(ctx, Search{Search: "Paging", Pagination: Pagination{Offset: 2, Limit: 2}})
	require.NoError(t, err)
	page = resp.(basicResponse).Data.(searchResponse)
	assert.Equal(t, uint(3), page.Rows)
	assert.False(t, page.HasMore)
}
