package markdown

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var entityPattern = regexp.MustCompile(`&(?:[a-zA-Z][a-zA-Z0-9]{1,31}|#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6});`)

// DecodeEntities 解码命名实体与数字实体。ATS 返回的内容经常被转义两次
// (&amp;amp;)，因此最多解码两轮。
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return normalizeSpaces(s)
	}
	out := html.UnescapeString(s)
	if entityPattern.MatchString(out) {
		out = html.UnescapeString(out)
	}
	return normalizeSpaces(out)
}

func normalizeSpaces(s string) string {
	return strings.NewReplacer(
		"\u00a0", " ",
		"\u200b", "",
		"\ufeff", "",
	).Replace(s)
}
