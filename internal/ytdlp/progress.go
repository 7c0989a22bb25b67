package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

// ProgressTemplate makes yt-dlp print "[progress] <pct>% of <size> at
// <speed> ETA <eta>" lines. ExtractProgress prefers them over the
// human-readable progress line.
const ProgressTemplate = "download:[progress] %(progress._percent_str)s of %(progress._total_bytes_str)s at %(progress._speed_str)s ETA %(progress._eta_str)s"

var (
	reMarker     = regexp.MustCompile(`\[progress\]\s*([0-9]+(?:\.[0-9]+)?)%`)
	rePct        = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reDownloader = regexp.MustCompile(`(^|[\s;&|(])yt-dlp(\s|$)`)

	progressFlags = []string{"--newline", "--progress-template", ProgressTemplate}
	progressArgs  = `--newline --progress-template "` + ProgressTemplate + `"`
)

// ExtractProgress returns the percentage found in chunk. The chunk does not
// have to be a whole line. ok is false when the chunk carries no progress.
func ExtractProgress(chunk string) (float64, bool) {
	if m := reMarker.FindStringSubmatch(chunk); len(m) > 1 {
		return parsePercent(m[1])
	}
	if m := rePct.FindStringSubmatch(chunk); len(m) > 1 {
		return parsePercent(m[1])
	}
	return 0, false
}

func parsePercent(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MentionsDownloader reports whether command invokes yt-dlp anywhere.
func MentionsDownloader(command string) bool {
	return reDownloader.MatchString(command)
}

// AugmentProgress returns command with the progress template flags added to
// every yt-dlp invocation. Invocations that already carry them are left as is.
func AugmentProgress(command string) string {
	locs := reDownloader.FindAllStringSubmatchIndex(command, -1)
	if len(locs) == 0 {
		return command
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		// loc[3] is the end of the leading separator group, where "yt-dlp" starts.
		nameEnd := loc[3] + len("yt-dlp")
		b.WriteString(command[last:nameEnd])
		last = nameEnd
		if strings.HasPrefix(strings.TrimLeft(command[nameEnd:], " \t"), "--newline --progress-template") {
			continue
		}
		b.WriteString(" ")
		b.WriteString(progressArgs)
	}
	b.WriteString(command[last:])
	return b.String()
}

// AugmentArgv is AugmentProgress for an argument vector. Shell wrappers
// ("sh -c <script>") have their script augmented.
func AugmentArgv(argv []string) []string {
	if len(argv) == 0 {
		return argv
	}
	out := make([]string, 0, len(argv)+len(progressFlags))
	switch {
	case isDownloaderBinary(argv[0]):
		out = append(out, argv[0])
		if len(argv) > 1 && argv[1] == progressFlags[0] && len(argv) > 2 && argv[2] == progressFlags[1] {
			return append(out, argv[1:]...)
		}
		out = append(out, progressFlags...)
		return append(out, argv[1:]...)
	case len(argv) == 3 && argv[1] == "-c" && isShell(argv[0]):
		return append(out, argv[0], argv[1], AugmentProgress(argv[2]))
	default:
		return append(out, argv...)
	}
}

func isDownloaderBinary(name string) bool {
	return name == "yt-dlp" || strings.HasSuffix(name, "/yt-dlp")
}

func isShell(name string) bool {
	switch name {
	case "sh", "bash", "/bin/sh", "/bin/bash":
		return true
	}
	return false
}
