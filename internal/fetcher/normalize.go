package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ats-radar/internal/category"
	"ats-radar/internal/markdown"
	"ats-radar/internal/model"

	"gorm.io/datatypes"
)

// ErrRejected 表示职位不在分类范围内，不是错误，只是被丢弃。
var ErrRejected = errors.New("job rejected by classifier")

func isRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

const shortDescriptionLimit = 300

// Enhancer 把原始描述整理为 Markdown。
type Enhancer interface {
	Enhance(ctx context.Context, raw, title, company string) string
}

// Tagger 提取标签。
type Tagger interface {
	Extract(ctx context.Context, title, description string) []string
}

// Posting 是各来源映射后的中间结构，地点范围已由来源自己的规则确定。
type Posting struct {
	Source         string
	ExternalID     string
	Title          string
	Company        string
	CompanyLogoURL string
	RawDescription string
	ApplyURL       string
	PostedAt       time.Time
	Scope          model.LocationScope
	LocationText   string
	EmploymentHint string
	Salary         model.Salary
}

// Normalizer 把 Posting 变成 model.Job：分类 → 增强描述 → 提取标签 → 合同类型。
// 抓取器不关心分类法，只通过 Classifier 接口调用。
type Normalizer struct {
	classifier category.Classifier
	enhancer   Enhancer
	tagger     Tagger
}

// NewNormalizer 创建 Normalizer。
func NewNormalizer(classifier category.Classifier, enhancer Enhancer, tagger Tagger) *Normalizer {
	return &Normalizer{classifier: classifier, enhancer: enhancer, tagger: tagger}
}

// Normalize 返回归一化后的职位；被分类器拒绝时返回 ErrRejected。
func (n *Normalizer) Normalize(ctx context.Context, p Posting, syncID string, syncedAt time.Time) (model.Job, error) {
	title := strings.TrimSpace(markdown.DecodeEntities(p.Title))
	company := strings.TrimSpace(p.Company)
	plain := markdown.PlainText(p.RawDescription)

	cat, ok := n.classifier.Classify(title, plain)
	if !ok {
		return model.Job{}, ErrRejected
	}

	description := n.enhancer.Enhance(ctx, p.RawDescription, title, company)
	tags := dedupe(n.tagger.Extract(ctx, title, description))
	if len(tags) == 0 {
		tags = []string{cat}
	}

	postedAt := p.PostedAt
	if postedAt.IsZero() {
		postedAt = syncedAt
	}

	job := model.Job{
		ID:               model.JobID(p.Source, p.ExternalID),
		Source:           p.Source,
		ExternalID:       p.ExternalID,
		CompanyName:      company,
		CompanyLogoURL:   strings.TrimSpace(p.CompanyLogoURL),
		Title:            title,
		RawDescription:   p.RawDescription,
		Description:      description,
		ShortDescription: markdown.Excerpt(description, shortDescriptionLimit),
		ApplyURL:         strings.TrimSpace(p.ApplyURL),
		PostedAt:         postedAt.UTC(),
		Category:         cat,
		Tags:             datatypes.JSONSlice[string](tags),
		Location:         model.Location{Scope: p.Scope, Text: strings.TrimSpace(p.LocationText)},
		ContractType:     DetectContract(title, plain, p.EmploymentHint),
		Salary:           p.Salary,
		Status:           model.JobStatusActive,
		SyncID:           syncID,
		LastSyncedAt:     syncedAt,
	}
	if err := model.ValidateJob(job); err != nil {
		return model.Job{}, fmt.Errorf("normalize: %w", err)
	}
	return job, nil
}

func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}
