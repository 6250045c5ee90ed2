package llamacpp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case chatPath:
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			switch req.Model {
			case "parts":
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"from parts"}]}}]}`))
			case "empty":
				_, _ = w.Write([]byte(`{"choices":[]}`))
			default:
				assert.Len(t, req.Messages[0].Content, 2)
				_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"blue jeans"}}]}`))
			}
		case embeddingsPath:
			var req embeddingsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Model == "dup" {
				_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]},{"index":0,"embedding":[2]}]}`))
				return
			}
			// reversed
			_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom\n"))
		}
	}))
}

func TestSimpleQuery(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	ctx := context.Background()

	reply, err := c.SimpleQuery(ctx, "m", "describe", "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "blue jeans", reply)

	reply, err = c.SimpleQuery(ctx, "parts", "describe", "")
	require.NoError(t, err)
	assert.Equal(t, "from parts", reply)

	_, err = c.SimpleQuery(ctx, "empty", "describe", "")
	assert.ErrorIs(t, err, errEmptyReply)
}

func TestEmbedOrdersByIndex(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	vecs, err := c.Embed(ctx, "m", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	_, err = c.Embed(ctx, "m", []string{"only-one"})
	assert.Error(t, err)

	_, err = c.Embed(ctx, "dup", []string{"a", "b"})
	assert.ErrorContains(t, err, "bad embedding index")

	vecs, err = c.Embed(ctx, "m", nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestStatusError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := post[map[string]any](context.Background(), c, "/nope", map[string]string{})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "boom", se.Body)
}

func TestReplyContent(t *testing.T) {
	var r replyContent
	require.NoError(t, json.Unmarshal([]byte(`[{"type":"image_url"},{"type":"text","text":"hi"}]`), &r))
	assert.Equal(t, replyContent("hi"), r)

	assert.Error(t, json.Unmarshal([]byte(`42`), &r))
}
