package command

import (
	"regexp"
	"strings"

	"ytcmd/internal/model"
)

var (
	reYouTube  = regexp.MustCompile(`^(?i:https?://)?(?i:(?:www|m|music)\.)?(?i:youtube\.com|youtu\.be)(?:[/?#]\S*)?$`)
	reBilibili = regexp.MustCompile(`^(?i:https?://)?(?i:(?:www|m)\.)?(?i:bilibili\.com)/video/\S*$`)
	rePlaylist = regexp.MustCompile(`[?&]list=[^&#\s]+`)
)

// Classification is what Classify derives from a URL.
type Classification struct {
	Supported  bool           `json:"supported"`
	Platform   model.Platform `json:"platform"`
	IsPlaylist bool           `json:"isPlaylist"`
}

// Classify detects the platform of url and whether it names a playlist.
// An unsupported or empty url is not an error, just Supported=false.
func Classify(url string) Classification {
	u := strings.TrimSpace(url)
	c := Classification{IsPlaylist: rePlaylist.MatchString(u)}
	switch {
	case u == "":
	case reYouTube.MatchString(u):
		c.Supported = true
		c.Platform = model.PlatformYouTube
	case reBilibili.MatchString(u):
		c.Supported = true
		c.Platform = model.PlatformBilibili
	}
	return c
}
