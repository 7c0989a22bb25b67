package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ytcmd/internal/command"
	"ytcmd/internal/model"
)

const (
	DefaultOEmbedURL       = "https://www.youtube.com/oembed"
	DefaultBilibiliViewURL = "https://api.bilibili.com/x/web-interface/view"
	defaultTimeout         = 10 * time.Second
	maxBodyBytes           = 4 << 20
)

var ErrUnsupportedURL = errors.New("unsupported url")

var (
	reBVID = regexp.MustCompile(`/video/(BV[0-9A-Za-z]+)`)
	reAID  = regexp.MustCompile(`(?i)/video/av([0-9]+)`)
)

// Info is what the UI shows next to a URL.
type Info struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	Provider     string `json:"provider"`
	MaxRes       string `json:"max_res,omitempty"`
	HasZhSub     bool   `json:"has_zh_sub"`
	HasEnSub     bool   `json:"has_en_sub"`
}

// ProbeFunc returns yt-dlp's info JSON for a URL.
type ProbeFunc func(ctx context.Context, url string) ([]byte, error)

type Client struct {
	HTTP            *http.Client
	OEmbedURL       string
	BilibiliViewURL string
	// Probe enriches the lookup with formats and subtitle tracks. Nil skips it.
	Probe ProbeFunc
}

func NewClient(probe ProbeFunc) *Client {
	return &Client{
		HTTP:            &http.Client{Timeout: defaultTimeout},
		OEmbedURL:       DefaultOEmbedURL,
		BilibiliViewURL: DefaultBilibiliViewURL,
		Probe:           probe,
	}
}

// Lookup resolves rawURL to its display metadata. A failing probe never
// fails the lookup; it only leaves the enrichment fields empty.
func (c *Client) Lookup(ctx context.Context, rawURL string) (Info, error) {
	rawURL = strings.TrimSpace(rawURL)
	cls := command.Classify(rawURL)
	if !cls.Supported {
		return Info{}, ErrUnsupportedURL
	}

	var (
		info Info
		err  error
	)
	switch cls.Platform {
	case model.PlatformYouTube:
		info, err = c.youtube(ctx, rawURL)
	case model.PlatformBilibili:
		info, err = c.bilibili(ctx, rawURL)
	default:
		return Info{}, ErrUnsupportedURL
	}
	if err != nil {
		return Info{}, err
	}

	if c.Probe != nil {
		if raw, probeErr := c.Probe(ctx, rawURL); probeErr == nil {
			mergeProbe(&info, raw)
		}
	}
	return info, nil
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	ProviderName string `json:"provider_name"`
}

func (c *Client) youtube(ctx context.Context, rawURL string) (Info, error) {
	q := url.Values{}
	q.Set("url", withScheme(rawURL))
	q.Set("format", "json")

	var resp oembedResponse
	if err := c.getJSON(ctx, c.OEmbedURL+"?"+q.Encode(), &resp); err != nil {
		return Info{}, fmt.Errorf("youtube oembed: %w", err)
	}
	provider := resp.ProviderName
	if provider == "" {
		provider = "YouTube"
	}
	return Info{
		Title:        resp.Title,
		AuthorName:   resp.AuthorName,
		ThumbnailURL: resp.ThumbnailURL,
		Provider:     provider,
	}, nil
}

type bilibiliResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Title string `json:"title"`
		Pic   string `json:"pic"`
		Owner struct {
			Name string `json:"name"`
		} `json:"owner"`
		Dimension struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"dimension"`
		Subtitle struct {
			List []struct {
				Lan string `json:"lan"`
			} `json:"list"`
		} `json:"subtitle"`
	} `json:"data"`
}

func (c *Client) bilibili(ctx context.Context, rawURL string) (Info, error) {
	q := url.Values{}
	if m := reBVID.FindStringSubmatch(rawURL); m != nil {
		q.Set("bvid", m[1])
	} else if m := reAID.FindStringSubmatch(rawURL); m != nil {
		q.Set("aid", m[1])
	} else {
		return Info{}, fmt.Errorf("bilibili: no video id in %q", rawURL)
	}

	var resp bilibiliResponse
	if err := c.getJSON(ctx, c.BilibiliViewURL+"?"+q.Encode(), &resp); err != nil {
		return Info{}, fmt.Errorf("bilibili view: %w", err)
	}
	if resp.Code != 0 {
		return Info{}, fmt.Errorf("bilibili view: code %d: %s", resp.Code, resp.Message)
	}

	info := Info{
		Title:        resp.Data.Title,
		AuthorName:   resp.Data.Owner.Name,
		ThumbnailURL: resp.Data.Pic,
		Provider:     "Bilibili",
	}
	if h := shortSide(resp.Data.Dimension.Width, resp.Data.Dimension.Height); h > 0 {
		info.MaxRes = strconv.Itoa(h) + "p"
	}
	for _, s := range resp.Data.Subtitle.List {
		markLanguage(&info, s.Lan)
	}
	return info, nil
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ytcmd")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type probeInfo struct {
	Title     string `json:"title"`
	Uploader  string `json:"uploader"`
	Thumbnail string `json:"thumbnail"`
	Height    int    `json:"height"`
	Formats   []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"formats"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
}

// mergeProbe fills resolution and subtitle availability from yt-dlp's info
// JSON. Only a caption track in the video's own language counts from the
// automatic set, since YouTube offers machine translations for every language.
func mergeProbe(info *Info, raw []byte) {
	var p probeInfo
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	best := shortSide(0, p.Height)
	for _, f := range p.Formats {
		if h := shortSide(f.Width, f.Height); h > best {
			best = h
		}
	}
	if best > 0 {
		info.MaxRes = strconv.Itoa(best) + "p"
	}
	for lang := range p.Subtitles {
		markLanguage(info, lang)
	}
	for lang := range p.AutomaticCaptions {
		if strings.HasSuffix(lang, "-orig") {
			markLanguage(info, strings.TrimSuffix(lang, "-orig"))
		}
	}
	if info.Title == "" {
		info.Title = p.Title
	}
	if info.AuthorName == "" {
		info.AuthorName = p.Uploader
	}
	if info.ThumbnailURL == "" {
		info.ThumbnailURL = p.Thumbnail
	}
}

func markLanguage(info *Info, lang string) {
	lang = strings.ToLower(lang)
	switch {
	case lang == "zh" || strings.HasPrefix(lang, "zh-") || strings.HasPrefix(lang, "ai-zh"):
		info.HasZhSub = true
	case lang == "en" || strings.HasPrefix(lang, "en-") || strings.HasPrefix(lang, "ai-en"):
		info.HasEnSub = true
	}
}

// shortSide is the "p" number of a frame size; portrait videos report their
// width.
func shortSide(width, height int) int {
	if width > 0 && height > 0 && width < height {
		return width
	}
	return height
}

func withScheme(raw string) string {
	if strings.HasPrefix(strings.ToLower(raw), "http://") || strings.HasPrefix(strings.ToLower(raw), "https://") {
		return raw
	}
	return "https://" + raw
}
