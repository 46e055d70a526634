package notifier

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Slack accepts far longer text, but a digest past this is unreadable.
const maxDigestRunes = 3800

// Section is one titled block of bullet lines.
type Section struct {
	Title string
	Lines []string
}

// Digest is the layout report notifications share: a bold header, the
// non-empty sections inside a single code block, then footer and time.
type Digest struct {
	Icon     string
	Title    string
	Sections []Section
	Footer   string
	At       time.Time
}

// Markdown renders the digest as Slack mrkdwn.
func (d Digest) Markdown() string {
	var parts []string
	if head := strings.TrimSpace(d.Icon + " " + d.Title); head != "" {
		parts = append(parts, "*"+escapeFence(head)+"*")
	}
	if block := codeBlock(d.Sections); block != "" {
		parts = append(parts, block)
	}
	var tail []string
	if f := strings.TrimSpace(d.Footer); f != "" {
		tail = append(tail, "_"+escapeFence(f)+"_")
	}
	if !d.At.IsZero() {
		tail = append(tail, "Generated "+d.At.Format("2006-01-02 15:04:05 MST"))
	}
	if len(tail) > 0 {
		parts = append(parts, strings.Join(tail, "\n"))
	}
	return clip(strings.Join(parts, "\n\n"), maxDigestRunes)
}

func codeBlock(sections []Section) string {
	var blocks []string
	for _, s := range sections {
		var lines []string
		for _, l := range s.Lines {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, "- "+escapeFence(l))
			}
		}
		if len(lines) == 0 {
			continue
		}
		if t := strings.TrimSpace(s.Title); t != "" {
			lines = append([]string{escapeFence(t)}, lines...)
		}
		blocks = append(blocks, strings.Join(lines, "\n")+"\n")
	}
	if len(blocks) == 0 {
		return ""
	}
	return "```\n" + strings.Join(blocks, "\n") + "```"
}

// A stray fence would close the digest's code block early.
func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

// clip cuts s to max runes. A cut inside the code block closes the fence
// so the rest of the channel does not render as code.
func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	cut := string([]rune(s)[:max])
	if open := strings.TrimRight(cut, "`"); strings.Count(open, "```")%2 == 1 {
		return open + "...\n```"
	}
	return cut + "..."
}
