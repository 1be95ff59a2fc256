// Package tags 从职位标题和描述中提取受控词表内的标签。
package tags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ats-radar/internal/llm"
	"ats-radar/internal/markdown"
	"ats-radar/internal/textmatch"

	"github.com/rs/zerolog"
)

// MaxTags 是单个职位最多保留的标签数。
const MaxTags = 10

const (
	maxDescriptionRunes = 4000
	maxTagRunes         = 40
)

var seniorTitle = textmatch.NewSet("Senior", "Sr.", "Lead", "Principal", "Staff")

// Runner 是 llm.Chain 的抽象。
type Runner interface {
	Run(ctx context.Context, prompt string, validate llm.ValidateFunc) (llm.Result, error)
}

// Extractor 先让文本生成服务挑选标签，结果只保留白名单内的项；
// 服务全部失败时退回关键词匹配。
type Extractor struct {
	runner Runner
	vocab  *Vocabulary
	log    zerolog.Logger
}

// Option 定制 Extractor。
type Option func(*Extractor)

// WithLogger 指定日志。
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// WithVocabulary 替换词表。
func WithVocabulary(v *Vocabulary) Option {
	return func(e *Extractor) {
		if v != nil {
			e.vocab = v
		}
	}
}

// NewExtractor 创建 Extractor，runner 为 nil 时只使用关键词匹配。
func NewExtractor(runner Runner, opts ...Option) *Extractor {
	e := &Extractor{runner: runner, vocab: DefaultVocabulary(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract 返回去重后的标签，最多 10 个。空切片表示没有匹配的标签。
func (e *Extractor) Extract(ctx context.Context, title, description string) []string {
	text := markdown.StripTags(description)
	if e.runner != nil {
		tags, err := e.extractWithAI(ctx, title, text)
		if err == nil {
			return withSenior(title, tags)
		}
		e.log.Info().Err(err).Str("title", title).Msg("tag extraction fell back to keyword matching")
	}
	return withSenior(title, e.vocab.match(title, text))
}

func (e *Extractor) extractWithAI(ctx context.Context, title, text string) ([]string, error) {
	var parsed []string
	validate := func(out string) error {
		items, err := parseTagList(out)
		if err != nil {
			return err
		}
		parsed = items
		return nil
	}

	if _, err := e.runner.Run(ctx, e.buildPrompt(title, text), validate); err != nil {
		return nil, err
	}

	out := make([]string, 0, MaxTags)
	seen := make(map[string]bool)
	for _, item := range parsed {
		tag, ok := e.vocab.Canonical(item)
		if !ok {
			e.log.Debug().Str("tag", item).Msg("discard tag outside vocabulary")
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out, nil
}

func (e *Extractor) buildPrompt(title, text string) string {
	if utf8.RuneCountInString(text) > maxDescriptionRunes {
		text = string([]rune(text)[:maxDescriptionRunes])
	}
	return fmt.Sprintf(`Pick the tags that describe this job posting.
Only use tags from this list, spelled exactly as written: %s.
Return a JSON array with at most %d tags, most relevant first. Return [] when none apply.

Title: %s

Description:
%s`, strings.Join(e.vocab.Tags(), ", "), MaxTags, strings.TrimSpace(title), strings.TrimSpace(text))
}

// MatchKeywords 使用内置词表做确定性的关键词匹配。
func MatchKeywords(title, description string) []string {
	return withSenior(title, DefaultVocabulary().match(title, description))
}

func (v *Vocabulary) match(title, description string) []string {
	text := title + "\n" + description
	out := make([]string, 0, MaxTags)
	for i, entry := range v.entries {
		if entry.Tag == SeniorTag {
			continue
		}
		if v.matchers[i].Any(text) {
			out = append(out, entry.Tag)
			if len(out) == MaxTags {
				break
			}
		}
	}
	return out
}

// withSenior 在标题带有资深职级时确保包含 Senior，且总数不超过 MaxTags。
func withSenior(title string, tags []string) []string {
	if tags == nil {
		tags = []string{}
	}
	if !seniorTitle.Any(title) {
		return tags
	}
	for _, t := range tags {
		if t == SeniorTag {
			return tags
		}
	}
	if len(tags) >= MaxTags {
		tags = tags[:MaxTags-1]
	}
	return append(tags, SeniorTag)
}

var errNotTagList = errors.New("response is not a tag list")

// parseTagList 接受 JSON 数组或逗号、换行分隔的列表。
func parseTagList(out string) ([]string, error) {
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), "`"))
	out = strings.TrimSpace(strings.TrimPrefix(out, "json"))

	if start, end := strings.Index(out, "["), strings.LastIndex(out, "]"); start >= 0 && end > start {
		var items []string
		if err := json.Unmarshal([]byte(out[start:end+1]), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", errNotTagList, err)
		}
		return items, nil
	}

	switch strings.ToLower(strings.Trim(out, ". ")) {
	case "", "none", "nenhum", "nenhuma":
		return []string{}, nil
	}

	var items []string
	for _, part := range strings.FieldsFunc(out, func(r rune) bool { return r == ',' || r == '\n' || r == ';' }) {
		item := strings.Trim(strings.TrimSpace(part), `-*"' `)
		if item == "" {
			continue
		}
		if utf8.RuneCountInString(item) > maxTagRunes {
			return nil, errNotTagList
		}
		items = append(items, item)
	}
	return items, nil
}
