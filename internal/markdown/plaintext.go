package markdown

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	htmlTagPattern = regexp.MustCompile(`(?i)<[a-z][^>]*>`)
	anyTagPattern  = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)

	mdHeadingLine = regexp.MustCompile(`(?m)^#{1,6}\s.*$`)
	mdListMarker  = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	mdEmphasis    = regexp.MustCompile(`\*{1,3}([^*\n]+?)\*{1,3}`)
	mdLink        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// ContainsHTML 判断文本中是否还有 HTML 开始标签。
func ContainsHTML(s string) bool {
	return htmlTagPattern.MatchString(s)
}

// StripTags 无条件移除所有形如标签的片段，直到没有残留。
// 嵌套的标签在内层被移除后会拼出新的标签，因此循环到不再变化为止；
// 每轮都会缩短字符串，循环必然结束。
func StripTags(s string) string {
	for {
		next := anyTagPattern.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

var blockElements = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "section": true, "article": true, "blockquote": true,
}

// PlainText 把 HTML（包括被转义过一次的 HTML）转成单行纯文本，
// 用于分类器与提示词输入。
func PlainText(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(unescapeTags(input)))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return collapse(b.String())
			}
			return collapse(DecodeEntities(b.String()))
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if blockElements[tag] {
				b.WriteString(" ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
				continue
			}
			if blockElements[tag] {
				b.WriteString(" ")
			}
		}
	}
}

// Excerpt 从 Markdown 生成纯文本摘要，长度不超过 limit 个字符，
// 尽量在单词边界截断。
func Excerpt(md string, limit int) string {
	text := mdHeadingLine.ReplaceAllString(md, "")
	text = mdListMarker.ReplaceAllString(text, "")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdEmphasis.ReplaceAllString(text, "$1")
	text = collapse(StripTags(text))

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	cut := runes[:limit-3]
	if idx := lastSpace(cut); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(string(cut), " ,.;:-") + "..."
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}

func collapse(s string) string {
	return strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
}
