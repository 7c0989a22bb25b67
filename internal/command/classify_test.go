package command

import (
	"testing"

	"ytcmd/internal/model"
)

func TestClassifySupportedURLs(t *testing.T) {
	cases := []struct {
		url      string
		platform model.Platform
	}{
		{"https://www.youtube.com/watch?v=abc123", model.PlatformYouTube},
		{"http://youtube.com/watch?v=abc123", model.PlatformYouTube},
		{"youtube.com/shorts/xyz", model.PlatformYouTube},
		{"www.youtube.com/watch?v=abc123", model.PlatformYouTube},
		{"https://youtu.be/abc123", model.PlatformYouTube},
		{"https://m.youtube.com/watch?v=abc123", model.PlatformYouTube},
		{"https://www.bilibili.com/video/BV1xx411c7mD", model.PlatformBilibili},
		{"bilibili.com/video/BV1xx411c7mD?p=2", model.PlatformBilibili},
		{"  https://www.youtube.com/watch?v=abc123  ", model.PlatformYouTube},
	}
	for _, tc := range cases {
		got := Classify(tc.url)
		if !got.Supported {
			t.Fatalf("expected %q to be supported", tc.url)
		}
		if got.Platform != tc.platform {
			t.Fatalf("platform for %q: got %q want %q", tc.url, got.Platform, tc.platform)
		}
	}
}

func TestClassifyUnsupportedURLs(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"https://vimeo.com/12345",
		"https://www.bilibili.com/bangumi/play/ep1",
		"https://youtube.com.evil.example/watch?v=1",
		"not a url",
	}
	for _, u := range cases {
		got := Classify(u)
		if got.Supported {
			t.Fatalf("expected %q to be unsupported", u)
		}
		if got.Platform != model.PlatformNone {
			t.Fatalf("expected empty platform for %q, got %q", u, got.Platform)
		}
	}
}

func TestClassifyPlaylist(t *testing.T) {
	cases := map[string]bool{
		"https://www.youtube.com/watch?v=abc&list=PL123":  true,
		"https://www.youtube.com/playlist?list=PL123":     true,
		"https://www.youtube.com/watch?v=abc&list=":       false,
		"https://www.youtube.com/watch?v=abc&playlist=PL": false,
		"https://www.youtube.com/watch?v=abc":             false,
		"https://www.bilibili.com/video/BV1?list=x":       true,
	}
	for u, want := range cases {
		if got := Classify(u).IsPlaylist; got != want {
			t.Fatalf("IsPlaylist(%q) = %v want %v", u, got, want)
		}
	}
}
