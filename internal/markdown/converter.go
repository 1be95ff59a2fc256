// Package markdown 把 ATS 返回的 HTML 转成干净的 Markdown。
//
// 这里刻意不使用 DOM 解析器：转换由一组有序的正则改写阶段组成，
// 只在 div soup 阶段使用一个两状态的状态机。后面的阶段依赖前面阶段
// 已经规整过的结构，调整顺序会破坏 ATS 特有的兼容处理（双重转义、
// 用 div 充当列表项等）。
//
// 已知限制：标签匹配是宽松的正则而非真正的解析器，未闭合或嵌套错误的
// 标签只会被尽量剥离，不保证得到结构正确的 Markdown。
package markdown

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Options 控制转换行为。
type Options struct {
	// BaseURL 用于把相对链接解析为绝对链接。
	BaseURL string
}

var (
	escapedTagPattern = regexp.MustCompile(`&lt;(/?[a-zA-Z][a-zA-Z0-9]*(?:\s+[a-zA-Z_:][-a-zA-Z0-9_:.]*(?:\s*=\s*(?:&quot;.*?&quot;|&#34;.*?&#34;|"[^"]*"|'[^']*'|[^\s&]+))?)*\s*/?)&gt;`)

	linkPattern    = regexp.MustCompile(`(?is)<a\b([^>]*)>(.*?)</a\s*>`)
	hrefPattern    = regexp.MustCompile(`(?i)\bhref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)
	headingPattern = regexp.MustCompile(`(?is)<h([1-6])\b[^>]*>(.*?)</h[1-6]\s*>`)
	orderedPattern = regexp.MustCompile(`(?is)<ol\b[^>]*>(.*?)</ol\s*>`)
	listItemClosed = regexp.MustCompile(`(?is)<li\b[^>]*>(.*?)</li\s*>`)
	listItemOpen   = regexp.MustCompile(`(?i)<li\b[^>]*>`)
	listWrapper    = regexp.MustCompile(`(?i)</?(?:ul|ol)\b[^>]*>`)
	boldPattern    = regexp.MustCompile(`(?is)<(?:b|strong)\b[^>]*>(.*?)</(?:b|strong)\s*>`)
	italicPattern  = regexp.MustCompile(`(?is)<(?:i|em)\b[^>]*>(.*?)</(?:i|em)\s*>`)

	divTagPattern     = regexp.MustCompile(`(?i)</?div\b[^>]*>`)
	sectionHeaderLine = regexp.MustCompile(`^\*\*([^*]+?)\*\*\s*:?$`)
	breakOnlyPattern  = regexp.MustCompile(`(?i)^(?:\s|<br\s*/?>|&nbsp;)*$`)
	listMarkerPrefix  = regexp.MustCompile(`^(?:[-+#>]|\*\s|\d+\.\s)`)

	brPattern         = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphPattern  = regexp.MustCompile(`(?i)</?p\b[^>]*>`)
	spanPattern       = regexp.MustCompile(`(?i)</?span\b[^>]*>`)
	blockClosePattern = regexp.MustCompile(`(?i)</(?:section|article|header|footer|table|tr|blockquote|h[1-6])\s*>`)
	cellClosePattern  = regexp.MustCompile(`(?i)</t[dh]\s*>`)

	commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	scriptPattern  = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(?:script|style)\s*>`)
	tagShaped      = regexp.MustCompile(`</?[a-zA-Z!][^<>]*>`)

	inlineSpace   = regexp.MustCompile(`[ \t\f\v]+`)
	anySpace      = regexp.MustCompile(`\s+`)
	extraNewlines = regexp.MustCompile(`\n{3,}`)
)

const maxSectionHeaderRunes = 80

type divState int

const (
	beforeFirstHeader divState = iota
	inSection
)

// Convert 将 HTML 转为 Markdown，纯函数、无 I/O，空输入返回空字符串。
func Convert(input string, opts Options) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	out := unescapeTags(input)
	out = convertSemantic(out, opts.BaseURL)
	out = convertDivSoup(out)
	out = convertStructural(out)
	out = stripAllTags(out)
	out = DecodeEntities(out)
	return normalizeWhitespace(out)
}

// 阶段 1：只反转义形如标签的 &lt;…&gt;，正文里的 "salary &lt; 50k" 保持不变。
func unescapeTags(s string) string {
	if !strings.Contains(s, "&lt;") {
		return s
	}
	return escapedTagPattern.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[len("&lt;") : len(m)-len("&gt;")]
		inner = strings.NewReplacer("&quot;", `"`, "&#34;", `"`, "&#39;", "'", "&amp;", "&").Replace(inner)
		return "<" + inner + ">"
	})
}

// 阶段 2：语义标签。链接先于其他标签处理，保证链接文字里的粗体等仍能被后续转换。
func convertSemantic(s, baseURL string) string {
	s = linkPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := linkPattern.FindStringSubmatch(m)
		return renderLink(parts[1], parts[2], baseURL)
	})

	s = headingPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := headingPattern.FindStringSubmatch(m)
		level, _ := strconv.Atoi(parts[1])
		if level > 4 {
			level = 4
		}
		text := inlineText(stripAllTags(parts[2]))
		if text == "" {
			return "\n"
		}
		return "\n\n" + strings.Repeat("#", level) + " " + text + "\n\n"
	})

	s = orderedPattern.ReplaceAllStringFunc(s, func(m string) string {
		inner := orderedPattern.FindStringSubmatch(m)[1]
		items := listItemClosed.FindAllStringSubmatch(inner, -1)
		if len(items) == 0 {
			return inner
		}
		var b strings.Builder
		b.WriteString("\n")
		n := 0
		for _, item := range items {
			text := inlineText(item[1])
			if text == "" {
				continue
			}
			n++
			b.WriteString(strconv.Itoa(n) + ". " + text + "\n")
		}
		b.WriteString("\n")
		return b.String()
	})

	s = listItemClosed.ReplaceAllStringFunc(s, func(m string) string {
		text := inlineText(listItemClosed.FindStringSubmatch(m)[1])
		if text == "" {
			return ""
		}
		return "- " + text + "\n"
	})
	s = listItemOpen.ReplaceAllString(s, "\n- ")
	s = listWrapper.ReplaceAllString(s, "\n")

	s = boldPattern.ReplaceAllStringFunc(s, func(m string) string {
		return wrapInline(stripAllTags(boldPattern.FindStringSubmatch(m)[1]), "**")
	})
	s = italicPattern.ReplaceAllStringFunc(s, func(m string) string {
		return wrapInline(italicPattern.FindStringSubmatch(m)[1], "*")
	})
	return s
}

func renderLink(attrs, inner, baseURL string) string {
	text := inlineText(stripAllTags(inner))
	href := ""
	if parts := hrefPattern.FindStringSubmatch(attrs); parts != nil {
		href = strings.TrimSpace(parts[1] + parts[2] + parts[3])
		href = DecodeEntities(href)
	}
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(lower, "javascript:") {
		return text
	}
	href = ResolveURL(baseURL, href)
	if text == "" {
		text = href
	}
	return "[" + text + "](" + href + ")"
}

// ResolveURL 把相对链接解析到 baseURL 上，无法解析时原样返回。
func ResolveURL(baseURL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() || strings.TrimSpace(baseURL) == "" {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return href
	}
	return base.ResolveReference(ref).String()
}

func wrapInline(inner, marker string) string {
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" {
		return inner
	}
	lead := inner[:strings.Index(inner, trimmed)]
	tail := inner[len(lead)+len(trimmed):]
	return lead + marker + trimmed + marker + tail
}

// inlineText 把块内容压成一行，保留行内标签给后续阶段。
func inlineText(s string) string {
	s = brPattern.ReplaceAllString(s, " ")
	s = paragraphPattern.ReplaceAllString(s, " ")
	s = divTagPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
}

// 阶段 3：div soup。加粗的 div 视为小节标题；第一个标题之前的 div 是普通段落，
// 标题之后的兄弟 div 渲染为列表项。
func convertDivSoup(s string) string {
	if !divTagPattern.MatchString(s) {
		return s
	}

	var b strings.Builder
	state := beforeFirstHeader
	for _, part := range divTagPattern.Split(s, -1) {
		block := strings.TrimSpace(part)
		if block == "" {
			continue
		}
		if breakOnlyPattern.MatchString(block) {
			b.WriteString("\n")
			continue
		}
		if title, ok := sectionHeader(block); ok {
			b.WriteString("\n\n## " + title + "\n\n")
			state = inSection
			continue
		}
		if state == inSection && isListCandidate(block) {
			b.WriteString("- " + block + "\n")
			continue
		}
		b.WriteString("\n" + block + "\n\n")
	}
	return b.String()
}

func sectionHeader(block string) (string, bool) {
	line := strings.TrimSpace(spanPattern.ReplaceAllString(block, ""))
	m := sectionHeaderLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[1]), ":"))
	if title == "" || utf8.RuneCountInString(title) > maxSectionHeaderRunes {
		return "", false
	}
	return title, true
}

func isListCandidate(block string) bool {
	if strings.Contains(block, "\n") {
		return false
	}
	lower := strings.ToLower(block)
	for _, tag := range []string{"<br", "<p", "<ul", "<ol", "<table"} {
		if strings.Contains(lower, tag) {
			return false
		}
	}
	if strings.HasPrefix(block, "**") {
		return true
	}
	return !listMarkerPrefix.MatchString(block)
}

// 阶段 4：剩余的结构性标签转为换行或直接移除。
func convertStructural(s string) string {
	s = brPattern.ReplaceAllString(s, "\n")
	s = paragraphPattern.ReplaceAllString(s, "\n\n")
	s = spanPattern.ReplaceAllString(s, "")
	s = blockClosePattern.ReplaceAllString(s, "\n")
	s = cellClosePattern.ReplaceAllString(s, " ")
	return s
}

// 阶段 5：无条件剥离剩余标签。
func stripAllTags(s string) string {
	s = commentPattern.ReplaceAllString(s, "")
	s = scriptPattern.ReplaceAllString(s, "")
	return tagShaped.ReplaceAllString(s, "")
}

// 阶段 7：压缩空白，最多保留一个空行。
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = extraNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
