package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/hn_keyword_bot/internal/config"
)

// fakeHN отдаёт maxitem и записи из карты; отсутствующие id - null.
func fakeHN(t *testing.T, latest int64, items map[int64]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var itemCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/maxitem.json" {
			fmt.Fprint(w, latest)
			return
		}
		var id int64
		if _, err := fmt.Sscanf(r.URL.Path, "/item/%d.json", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		itemCalls.Add(1)
		body, ok := items[id]
		if !ok {
			body = "null"
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &itemCalls
}

func newClient(baseURL string, maxItems int) *HackerNews {
	return NewHackerNews(config.Feed{
		BaseURL:        baseURL,
		Timeout:        5 * time.Second,
		Concurrency:    4,
		MaxItemsPerRun: maxItems,
	}, nil, nil)
}

func TestHackerNews_LatestID(t *testing.T) {
	srv, _ := fakeHN(t, 41000123, nil)

	id, err := newClient(srv.URL, 0).LatestID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(41000123), id)
}

func TestHackerNews_ItemsSince(t *testing.T) {
	srv, calls := fakeHN(t, 105, map[int64]string{
		101: `{"id":101,"type":"story","by":"pg","time":1700000000,"title":" New Redis release ","url":"https://redis.io"}`,
		102: `{"id":102,"type":"comment","deleted":true}`,
		103: `{"id":103,"type":"story","dead":true,"title":"spam"}`,
		105: `{"id":105,"type":"comment","text":"Try <i>kafka</i>.<p>Second &amp; last"}`,
	})

	items, err := newClient(srv.URL, 0).ItemsSince(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load())

	require.Len(t, items, 2)
	assert.Equal(t, int64(101), items[0].ID)
	assert.Equal(t, "New Redis release", items[0].Title)
	assert.Equal(t, "https://redis.io", items[0].URL)
	assert.Equal(t, "pg", items[0].By)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), items[0].Time)

	assert.Equal(t, int64(105), items[1].ID)
	assert.Equal(t, "Try kafka.\nSecond & last", items[1].Text)
}

func TestHackerNews_ItemsSince_NothingNew(t *testing.T) {
	srv, calls := fakeHN(t, 100, nil)

	items, err := newClient(srv.URL, 0).ItemsSince(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, calls.Load())
}

func TestHackerNews_ItemsSince_Backlog(t *testing.T) {
	items := map[int64]string{}
	for id := int64(1); id <= 50; id++ {
		items[id] = fmt.Sprintf(`{"id":%d,"type":"story","title":"t%d"}`, id, id)
	}
	srv, calls := fakeHN(t, 50, items)

	got, err := newClient(srv.URL, 10).ItemsSince(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, int32(10), calls.Load())
	for i, item := range got {
		assert.Equal(t, int64(i+1), item.ID, "ascending order")
	}
}

func TestHackerNews_ItemsSince_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "maxitem fails",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "item fails",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/maxitem.json" {
					fmt.Fprint(w, 3)
					return
				}
				if strings.HasSuffix(r.URL.Path, "/2.json") {
					http.Error(w, "unavailable", http.StatusServiceUnavailable)
					return
				}
				fmt.Fprint(w, `{"id":1,"title":"ok"}`)
			},
		},
		{
			name: "malformed item",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/maxitem.json" {
					fmt.Fprint(w, 1)
					return
				}
				fmt.Fprint(w, `{"id":`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newClient(srv.URL, 0).ItemsSince(context.Background(), 0)
			assert.Error(t, err)
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"paragraphs", "first<p>second<p>third", "first\nsecond\nthird"},
		{"line break", "a<br>b", "a\nb"},
		{"entities", "x &gt; y &#x27;z&#x27;", "x > y 'z'"},
		{"link", `see <a href="https://go.dev">go.dev</a>`, "see go.dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := plainText(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
