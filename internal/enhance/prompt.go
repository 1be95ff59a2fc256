package enhance

import (
	"strings"
)

// Template 是某个语言下的三段式 Markdown 模板。
type Template struct {
	Language         string
	About            string
	Responsibilities string
	Requirements     string
	Benefits         string
}

// DefaultLocale 为默认输出语言。
const DefaultLocale = "pt-BR"

var templates = map[string]Template{
	"pt-BR": {
		Language:         "Brazilian Portuguese",
		About:            "Sobre a vaga",
		Responsibilities: "Responsabilidades",
		Requirements:     "Requisitos",
		Benefits:         "Benefícios",
	},
	"en": {
		Language:         "English",
		About:            "About the role",
		Responsibilities: "Responsibilities",
		Requirements:     "Requirements",
		Benefits:         "Benefits",
	},
}

// TemplateFor 返回语言对应的模板，未知语言使用默认语言。
func TemplateFor(locale string) Template {
	if t, ok := templates[locale]; ok {
		return t
	}
	return templates[DefaultLocale]
}

const promptTemplate = `Rewrite the job posting below for {{COMPANY}} ("{{TITLE}}") as concise Markdown written in {{LANGUAGE}}.

Rules:
- Use exactly these sections, in this order: "## {{ABOUT}}", "## {{RESPONSIBILITIES}}", "## {{REQUIREMENTS}}". Add "## {{BENEFITS}}" only when the posting actually lists benefits.
- At most 300 words in total. Summarise aggressively but keep concrete tools, technologies, seniority and years of experience.
- Use "- " bullets under responsibilities, requirements and benefits.
- Never invent information and never write placeholders such as "[company should add ...]". Omit whatever the posting does not state.
- Omit equal opportunity statements, legal disclaimers and application instructions.
- Output Markdown only: no HTML, no code fences, no preamble.

Posting:
"""
{{TEXT}}
"""`

func buildPrompt(t Template, title, company, text string) string {
	return strings.NewReplacer(
		"{{COMPANY}}", strings.TrimSpace(company),
		"{{TITLE}}", strings.TrimSpace(title),
		"{{LANGUAGE}}", t.Language,
		"{{ABOUT}}", t.About,
		"{{RESPONSIBILITIES}}", t.Responsibilities,
		"{{REQUIREMENTS}}", t.Requirements,
		"{{BENEFITS}}", t.Benefits,
		"{{TEXT}}", text,
	).Replace(promptTemplate)
}

// templateHeadings 汇总所有语言的模板标题，用于识别已经增强过的描述。
func templateHeadings() []string {
	var out []string
	for _, t := range templates {
		out = append(out, "## "+t.About, "## "+t.Responsibilities, "## "+t.Requirements)
	}
	return out
}
