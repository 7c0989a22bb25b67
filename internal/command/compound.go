package command

import (
	"fmt"
	"strings"
)

// Provenance markers whisper output is renamed to before labeling. The
// labeling step maps them to the AI and AITranscribed tags.
const (
	markerFallback   = "ai-fallback"
	markerTranscribe = "ai-transcribe"
)

// Label tags written into renamed subtitle files.
var labelTags = []string{"Original", "AutoTranslated", "AutoGenerated", "AI"}

// scriptWriter accumulates the lines of a compound command.
type scriptWriter struct {
	lines  []string
	indent int
}

func (w *scriptWriter) line(format string, args ...any) {
	w.lines = append(w.lines, strings.Repeat("  ", w.indent)+fmt.Sprintf(format, args...))
}

func (w *scriptWriter) String() string {
	return strings.Join(w.lines, "\n")
}

// subtitlesScript fetches existing subtitle tracks and falls back to whisper
// when the run produced none.
func subtitlesScript(url, outputPath string, isPlaylist bool, opts Options) string {
	w := &scriptWriter{}
	writePrologue(w, outputPath, opts)

	w.line("%s", subtitleOnlyInvocation(url, outputPath, isPlaylist, opts).Display())
	w.line(`if [ -z "$(find "$DEST" -type f -name '*.srt' -newer "$SENTINEL" 2>/dev/null | head -n 1)" ]; then`)
	w.indent++
	w.line(`echo "[ytcmd] no subtitles found, transcribing audio with whisper"`)
	writeTranscription(w, url, outputPath, isPlaylist, opts, markerFallback)
	w.indent--
	w.line("fi")

	writeEpilogue(w)
	return w.String()
}

// transcribeScript always extracts audio and runs whisper.
func transcribeScript(url, outputPath string, isPlaylist bool, opts Options) string {
	w := &scriptWriter{}
	writePrologue(w, outputPath, opts)
	writeTranscription(w, url, outputPath, isPlaylist, opts, markerTranscribe)
	writeEpilogue(w)
	return w.String()
}

// writePrologue creates the sentinel. Files newer than it belong to this run.
// The work block only runs when the sentinel exists.
func writePrologue(w *scriptWriter, outputPath string, opts Options) {
	w.line("DEST=%s", doubleQuote(outputPath))
	w.line(`SENTINEL="%s/ytcmd-sentinel-$(date +%%s)-$$"`, opts.ScratchDir)
	w.line("STATUS=0")
	w.line(`if ! mkdir -p "$DEST" || ! touch "$SENTINEL"; then`)
	w.indent++
	w.line(`echo "[ytcmd] cannot prepare $DEST" >&2`)
	w.line("STATUS=1")
	w.indent--
	w.line("fi")
	w.line(`if [ "$STATUS" -eq 0 ]; then`)
	w.indent++
}

// writeTranscription runs whisper over this run's audio. The loop runs in a
// pipeline subshell, so failures are reported through "$SENTINEL.failed".
func writeTranscription(w *scriptWriter, url, outputPath string, isPlaylist bool, opts Options, marker string) {
	w.line("if %s; then", audioInvocation(url, outputPath, isPlaylist, opts, true).Display())
	w.indent++
	w.line(`find "$DEST" -type f -name '*.%s' -newer "$SENTINEL" | while IFS= read -r f; do`, opts.AudioFormat)
	w.indent++
	w.line(`if ! { whisper "$f" --model %s --output_format srt --output_dir "$(dirname "$f")" </dev/null && mv -f "${f%%.*}.srt" "${f%%.*}.%s.srt"; }; then`,
		displayArg(opts.WhisperModel), marker)
	w.indent++
	w.line(`echo "[ytcmd] transcription failed: $f" >&2`)
	w.line(`touch "$SENTINEL.failed"`)
	w.indent--
	w.line("fi")
	w.indent--
	w.line("done")
	w.line(`if [ -e "$SENTINEL.failed" ]; then`)
	w.indent++
	w.line(`rm -f "$SENTINEL.failed"`)
	w.line("STATUS=1")
	w.indent--
	w.line(`elif [ -z "$(find "$DEST" -type f -name '*.%s.srt' -newer "$SENTINEL" 2>/dev/null | head -n 1)" ]; then`, marker)
	w.indent++
	w.line(`echo "[ytcmd] transcription produced no subtitles" >&2`)
	w.line("STATUS=1")
	w.indent--
	w.line("fi")
	w.indent--
	w.line("else")
	w.indent++
	w.line(`echo "[ytcmd] audio extraction failed" >&2`)
	w.line("STATUS=1")
	w.indent--
	w.line("fi")
}

// writeEpilogue labels and post-processes this run's subtitles and closes the
// work block opened by writePrologue. The sentinel is removed on every path
// and the last line carries the exit status.
func writeEpilogue(w *scriptWriter) {
	skip := make([]string, 0, len(labelTags))
	for _, tag := range labelTags {
		skip = append(skip, `*.\[`+tag+`*\].srt`)
	}

	w.line(`find "$DEST" -type f -name '*.srt' -newer "$SENTINEL" | while IFS= read -r f; do`)
	w.indent++
	w.line(`dir=$(dirname "$f"); name=$(basename "$f")`)
	w.line(`case "$name" in %s) continue ;; esac`, strings.Join(skip, "|"))
	w.line(`base=${name%%.srt}`)
	w.line(`case "$base" in *.*) lang=${base##*.}; title=${base%%.*} ;; *) lang=""; title=$base ;; esac`)
	w.line(`case "$lang" in`)
	w.indent++
	w.line(`%s) tag="AITranscribed" ;;`, markerTranscribe)
	w.line(`%s) tag="AI" ;;`, markerFallback)
	w.line(`*-orig) tag="AutoGenerated-$lang" ;;`)
	w.line(`ai-*) tag="AutoGenerated-$lang" ;;`)
	w.line(`*-[a-z][a-z]) tag="AutoTranslated-$lang" ;;`)
	w.line(`*) tag="Original${lang:+-$lang}" ;;`)
	w.indent--
	w.line("esac")
	w.line(`target="$dir/$title.[$tag].srt"`)
	w.line(`[ -e "$target" ] || mv "$f" "$target"`)
	w.indent--
	w.line("done")

	w.line(`find "$DEST" -type f -name '*.srt' -newer "$SENTINEL" | while IFS= read -r f; do`)
	w.indent++
	w.line(`tr -d '\r' < "$f" | sed -e 's/<[^>]*>//g' -e '/^[0-9][0-9]*$/d' -e '/-->/d' -e '/^[[:space:]]*$/d' | uniq > "${f%%.srt}.txt"`)
	w.indent--
	w.line("done")

	w.indent--
	w.line("fi")
	w.line(`rm -f "$SENTINEL"`)
	w.line(`[ "$STATUS" -eq 0 ]`)
}
