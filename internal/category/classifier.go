// Package category 把职位映射到封闭的类别集合，无法归类的职位被拒绝。
// 类别与规则来自 Taxonomy，抓取器只依赖 Classifier 接口。
package category

import (
	"ats-radar/internal/markdown"
	"ats-radar/internal/textmatch"
)

// Classifier 返回类别名；第二个返回值为 false 表示职位不在分类范围内，应被丢弃。
type Classifier interface {
	Classify(title, description string) (string, bool)
}

type compiled struct {
	name  string
	title textmatch.Set
	text  textmatch.Set
}

// KeywordClassifier 按顺序判断：标题排除词 → 标题关键词得分 → 全文关键词得分（需达到最少命中数）→ 拒绝。
type KeywordClassifier struct {
	exclusions textmatch.Set
	categories []compiled
	minHits    int
}

// NewKeywordClassifier 根据分类法构建分类器。
func NewKeywordClassifier(t Taxonomy) (*KeywordClassifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	minHits := t.MinTextHits
	if minHits == 0 {
		minHits = defaultMinTextHits
	}
	c := &KeywordClassifier{exclusions: textmatch.NewSet(t.TitleExclusions...), minHits: minHits}
	for _, cat := range t.Categories {
		all := append(append([]string{}, cat.TitleKeywords...), cat.Keywords...)
		c.categories = append(c.categories, compiled{
			name:  cat.Name,
			title: textmatch.NewSet(cat.TitleKeywords...),
			text:  textmatch.NewSet(all...),
		})
	}
	return c, nil
}

// Classify 实现 Classifier。
func (c *KeywordClassifier) Classify(title, description string) (string, bool) {
	if c.exclusions.Any(title) {
		return "", false
	}

	if name, score := c.best(func(cat compiled) int { return cat.title.Count(title) }); score > 0 {
		return name, true
	}

	text := title + "\n" + markdown.PlainText(description)
	if name, score := c.best(func(cat compiled) int { return cat.text.Count(text) }); score >= c.minHits {
		return name, true
	}
	return "", false
}

// best 返回得分最高的类别，同分时取分类法中靠前的。
func (c *KeywordClassifier) best(score func(compiled) int) (string, int) {
	bestName, bestScore := "", 0
	for _, cat := range c.categories {
		if s := score(cat); s > bestScore {
			bestName, bestScore = cat.name, s
		}
	}
	return bestName, bestScore
}
