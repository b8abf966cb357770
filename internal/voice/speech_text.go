package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencedBlockRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe   = regexp.MustCompile("`[^`]*`")
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bareURLRe      = regexp.MustCompile(`https?://\S+`)

	markupStripper = strings.NewReplacer("*", " ", "_", " ", "#", " ", "~", " ", "|", " ", "<", " ", ">", " ", "\\", " ")
)

// SpeakableText strips markdown, links and emoji from a model reply so the
// synthesized voice does not read out markup. It returns "" when nothing
// speakable is left.
func SpeakableText(reply string) string {
	s := strings.TrimSpace(reply)
	if s == "" {
		return ""
	}
	s = fencedBlockRe.ReplaceAllString(s, " ")
	s = inlineCodeRe.ReplaceAllString(s, " ")
	s = markdownLinkRe.ReplaceAllString(s, "$1")
	s = bareURLRe.ReplaceAllString(s, " ")
	s = markupStripper.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case r == '\u200d' || r == '\ufe0f' || unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			continue
		case unicode.IsPunct(r) && !strings.ContainsRune(`.,!?:;'"-()`, r):
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
