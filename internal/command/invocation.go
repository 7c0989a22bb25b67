package command

import (
	"strings"

	"github.com/alessio/shellescape"

	"ytcmd/internal/model"
)

const (
	DownloaderBinary = "yt-dlp"
	shellBinary      = "sh"
)

// Invocation describes a generated command so it can be rendered both as the
// copyable literal (Display) and as an argument vector (Argv). Single
// invocations fill Flags/Output; compound ones carry the whole Script.
type Invocation struct {
	Mode     model.Mode
	URL      string
	Playlist bool
	Flags    []string
	Output   string
	Script   string
}

func (inv Invocation) IsCompound() bool {
	return inv.Script != ""
}

// Display renders the literal shell command. The output template and the
// URL are always wrapped in double quotes; other flag values only when they
// contain shell metacharacters.
func (inv Invocation) Display() string {
	if inv.IsCompound() {
		return inv.Script
	}
	var b strings.Builder
	b.WriteString(DownloaderBinary)
	for _, f := range inv.Flags {
		b.WriteByte(' ')
		b.WriteString(displayArg(f))
	}
	if inv.Output != "" {
		b.WriteString(" -o ")
		b.WriteString(doubleQuote(inv.Output))
	}
	b.WriteByte(' ')
	b.WriteString(doubleQuote(inv.URL))
	return b.String()
}

// Argv renders the command as an argument vector that can be executed
// without a shell parsing the URL.
func (inv Invocation) Argv() []string {
	if inv.IsCompound() {
		return []string{shellBinary, "-c", inv.Script}
	}
	argv := make([]string, 0, len(inv.Flags)+4)
	argv = append(argv, DownloaderBinary)
	argv = append(argv, inv.Flags...)
	if inv.Output != "" {
		argv = append(argv, "-o", inv.Output)
	}
	return append(argv, inv.URL)
}

// QuotedArgv renders Argv with POSIX single-quote escaping, for logs.
func (inv Invocation) QuotedArgv() string {
	return shellescape.QuoteCommand(inv.Argv())
}

func doubleQuote(s string) string {
	return `"` + s + `"`
}

func displayArg(s string) string {
	if s == "" {
		return `""`
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return doubleQuote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	switch r {
	case '-', '_', '.', ',', '=', ':', '/', '+', '@', '%':
		return false
	}
	return true
}
