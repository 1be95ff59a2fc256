// Package textmatch 提供按词边界匹配关键词的工具，避免 "Go" 命中 "Google"、"Django" 这类子串误判。
package textmatch

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// 关键词两侧不允许紧贴字母、数字或下划线；结尾额外排除 + 与 #，
// 让 "C" 不会命中 "C++" 或 "C#"。
const (
	leftBoundary  = `(?:^|[^\p{L}\p{N}_])`
	rightBoundary = `(?:$|[^\p{L}\p{N}_+#])`
)

// Matcher 是编译好的单个关键词。
type Matcher struct {
	Keyword string
	re      *regexp.Regexp
}

// Compile 编译关键词。caseSensitive 为 false 时忽略大小写。
func Compile(keyword string, caseSensitive bool) *Matcher {
	kw := strings.TrimSpace(keyword)
	expr := leftBoundary + regexp.QuoteMeta(kw) + rightBoundary
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	return &Matcher{Keyword: kw, re: regexp.MustCompile(expr)}
}

// Keyword 按默认规则编译：两个字符以内的关键词（Go、R、UX）区分大小写，其余忽略大小写。
func Keyword(keyword string) *Matcher {
	kw := strings.TrimSpace(keyword)
	return Compile(kw, utf8.RuneCountInString(kw) <= 2)
}

// Match 判断文本是否包含该关键词。
func (m *Matcher) Match(text string) bool {
	if m == nil || m.Keyword == "" {
		return false
	}
	return m.re.MatchString(text)
}

// Set 是一组关键词。
type Set []*Matcher

// NewSet 用 Keyword 规则编译一组关键词，空白项会被忽略。
func NewSet(keywords ...string) Set {
	set := make(Set, 0, len(keywords))
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		set = append(set, Keyword(kw))
	}
	return set
}

// Any 判断是否命中任一关键词。
func (s Set) Any(text string) bool {
	for _, m := range s {
		if m.Match(text) {
			return true
		}
	}
	return false
}

// Count 返回命中的关键词个数，同一关键词只计一次。
func (s Set) Count(text string) int {
	n := 0
	for _, m := range s {
		if m.Match(text) {
			n++
		}
	}
	return n
}
