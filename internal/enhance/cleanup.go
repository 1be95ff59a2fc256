package enhance

import (
	"regexp"
	"strings"
)

var (
	codeFenceLine   = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	bracketed       = regexp.MustCompile(`\[[^\]\n]*\](?:\([^)\n]*\))?`)
	placeholderHint = regexp.MustCompile(`(?i)should add|to be (?:added|defined|confirmed)|insert |inserir|adicionar|a definir|placeholder|\bTBD\b|\bTBA\b|not specified|não especificad|não informad`)
	eeoLine         = regexp.MustCompile(`(?i)equal opportunity|equal employment|\bEEO\b|does not discriminate|without regard to (?:race|gender|age)|igualdade de oportunidades|não discrimina`)
	emptyBullet     = regexp.MustCompile(`^(?:[-*+]|\d+\.)\s*[:.]?\s*$`)
	headingLine     = regexp.MustCompile(`^(?:#{1,6}\s+.+|\*\*[^*]+\*\*:?|[\p{L} ]{2,40}:)$`)
	blankRun        = regexp.MustCompile(`\n{3,}`)
)

// cleanup 去掉 AI 常见的残留：代码块围栏、方括号占位符、平等就业声明、
// 空的结尾小节（例如只剩 "Benefícios:"），并压缩空行。结果对自身幂等。
func cleanup(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	md = codeFenceLine.ReplaceAllString(md, "")
	md = bracketed.ReplaceAllStringFunc(md, func(m string) string {
		if strings.HasSuffix(m, ")") {
			return m
		}
		if placeholderHint.MatchString(m) {
			return ""
		}
		return m
	})

	lines := strings.Split(md, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		if eeoLine.MatchString(trimmed) || emptyBullet.MatchString(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	kept = dropEmptyTrailingSections(kept)

	out := strings.Join(kept, "\n")
	out = blankRun.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// dropEmptyTrailingSections 反复移除结尾处没有正文的标题行。
func dropEmptyTrailingSections(lines []string) []string {
	for {
		end := len(lines)
		for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		lines = lines[:end]
		if end == 0 || !headingLine.MatchString(strings.TrimSpace(lines[end-1])) {
			return lines
		}
		lines = lines[:end-1]
	}
}
