package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, probe ProbeFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(probe)
	c.HTTP = srv.Client()
	c.OEmbedURL = srv.URL + "/oembed"
	c.BilibiliViewURL = srv.URL + "/view"
	return c
}

func TestLookupYouTubeUsesOEmbedAndProbe(t *testing.T) {
	var gotURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oembed" {
			http.NotFound(w, r)
			return
		}
		gotURL = r.URL.Query().Get("url")
		_, _ = w.Write([]byte(`{"title":"Talk","author_name":"Chan","thumbnail_url":"https://i.ytimg.com/x.jpg","provider_name":"YouTube"}`))
	}, func(ctx context.Context, url string) ([]byte, error) {
		return []byte(`{
			"formats":[{"width":1920,"height":1080},{"width":3840,"height":2160},{"width":0,"height":0}],
			"subtitles":{"zh-Hans":[]},
			"automatic_captions":{"en-orig":[],"fr":[]}
		}`), nil
	})

	info, err := c.Lookup(context.Background(), "youtu.be/abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if gotURL != "https://youtu.be/abc" {
		t.Fatalf("oembed url param = %q", gotURL)
	}
	want := Info{
		Title: "Talk", AuthorName: "Chan", ThumbnailURL: "https://i.ytimg.com/x.jpg",
		Provider: "YouTube", MaxRes: "2160p", HasZhSub: true, HasEnSub: true,
	}
	if info != want {
		t.Fatalf("info = %+v, want %+v", info, want)
	}
}

func TestLookupProbeFailureIsIgnored(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Talk"}`))
	}, func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("yt-dlp missing")
	})
	info, err := c.Lookup(context.Background(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if info.Title != "Talk" || info.MaxRes != "" || info.Provider != "YouTube" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestLookupBilibili(t *testing.T) {
	var bvid string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		bvid = r.URL.Query().Get("bvid")
		_, _ = w.Write([]byte(`{"code":0,"data":{"title":"视频","pic":"https://i0.hdslb.com/p.jpg",
			"owner":{"name":"up"},"dimension":{"width":1920,"height":1080},
			"subtitle":{"list":[{"lan":"ai-zh"}]}}}`))
	}, nil)

	info, err := c.Lookup(context.Background(), "https://www.bilibili.com/video/BV1xx411c7mD?p=1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if bvid != "BV1xx411c7mD" {
		t.Fatalf("bvid = %q", bvid)
	}
	if info.Title != "视频" || info.AuthorName != "up" || info.MaxRes != "1080p" || !info.HasZhSub || info.HasEnSub {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestLookupBilibiliAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":-404,"message":"not found"}`))
	}, nil)
	if _, err := c.Lookup(context.Background(), "https://www.bilibili.com/video/BV1xx411c7mD"); err == nil {
		t.Fatal("expected api error")
	}
}

func TestLookupRejectsUnsupportedURL(t *testing.T) {
	c := NewClient(nil)
	if _, err := c.Lookup(context.Background(), "https://vimeo.com/1"); !errors.Is(err, ErrUnsupportedURL) {
		t.Fatalf("expected ErrUnsupportedURL, got %v", err)
	}
}

func TestLookupHTTPFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}, nil)
	if _, err := c.Lookup(context.Background(), "https://youtu.be/abc"); err == nil {
		t.Fatal("expected failure on 500")
	}
}
