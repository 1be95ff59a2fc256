package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ats-radar/internal/model"
)

const defaultGreenhouseBase = "https://boards-api.greenhouse.io/v1/boards"

// 决定工作模式的 metadata 字段名，按优先级排列。
var greenhouseWorkModelFields = []string{"work model", "workplace type", "location type"}

// GreenhouseFetcher 先调用职位列表接口，再逐个调用详情接口获取描述与薪资。
type GreenhouseFetcher struct {
	base
	baseURL string
}

// NewGreenhouseFetcher 创建 Greenhouse 抓取器。
func NewGreenhouseFetcher(cfg SourceConfig, delay time.Duration, n *Normalizer, client *http.Client, opts ...Option) *GreenhouseFetcher {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultGreenhouseBase
	}
	return &GreenhouseFetcher{
		base:    newBase(SourceGreenhouse, cfg, delay, n, client, opts),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch 按列表顺序逐个处理职位，详情请求之间等待 request_delay。
func (g *GreenhouseFetcher) Fetch(ctx context.Context) (Batch, error) {
	boards, err := g.boardsOrError()
	if err != nil {
		return Batch{Source: g.name}, err
	}

	batch := g.newBatch()
	var lastErr error
	for _, board := range boards {
		var list greenhouseList
		listURL := g.baseURL + "/" + url.PathEscape(board.Token) + "/jobs"
		if err := g.getJSON(ctx, listURL, &list); err != nil {
			lastErr = fmt.Errorf("list board %s: %w", board.Token, err)
			batch.Errors = append(batch.Errors, lastErr.Error())
			g.log.Error().Err(err).Str("board", board.Token).Msg("list jobs failed")
			continue
		}
		batch.Listed += len(list.Jobs)
		g.log.Info().Str("board", board.Token).Int("jobs", len(list.Jobs)).Msg("listed jobs")

		for i, item := range list.Jobs {
			if i > 0 {
				if err := g.sleep(ctx, g.delay); err != nil {
					return batch, err
				}
			}

			var detail greenhouseJob
			detailURL := fmt.Sprintf("%s/%s/jobs/%d?pay_transparency=true", g.baseURL, url.PathEscape(board.Token), item.ID)
			if err := g.getJSON(ctx, detailURL, &detail); err != nil {
				if ctx.Err() != nil {
					return batch, ctx.Err()
				}
				batch.Failed++
				g.log.Error().Err(err).Str("board", board.Token).Int64("job_id", item.ID).Str("title", item.Title).Msg("fetch job detail failed")
				continue
			}
			g.process(ctx, &batch, g.posting(board, detail))
		}
	}
	return g.finish(batch, len(boards), lastErr)
}

func (g *GreenhouseFetcher) posting(board Board, j greenhouseJob) Posting {
	company := board.Company
	if company == "" {
		company = j.CompanyName
	}
	if company == "" {
		company = board.Token
	}

	workModel := ""
	for _, field := range greenhouseWorkModelFields {
		if v := j.metadataValue(field); v != "" {
			workModel = v
			break
		}
	}

	posted := j.FirstPublished
	if posted.IsZero() {
		posted = j.UpdatedAt
	}

	return Posting{
		Source:         SourceGreenhouse,
		ExternalID:     strconv.FormatInt(j.ID, 10),
		Title:          j.Title,
		Company:        company,
		CompanyLogoURL: board.LogoURL,
		RawDescription: j.Content,
		ApplyURL:       j.AbsoluteURL,
		PostedAt:       posted,
		Scope:          ScopeFrom(workModel, j.Location.Name),
		LocationText:   j.Location.Name,
		EmploymentHint: j.metadataValue("employment type"),
		Salary:         j.salary(),
	}
}

type greenhouseList struct {
	Jobs []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"jobs"`
}

type greenhouseJob struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	CompanyName    string    `json:"company_name"`
	UpdatedAt      time.Time `json:"updated_at"`
	FirstPublished time.Time `json:"first_published"`
	AbsoluteURL    string    `json:"absolute_url"`
	Content        string    `json:"content"`
	Location       struct {
		Name string `json:"name"`
	} `json:"location"`
	Metadata []struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	} `json:"metadata"`
	PayInputRanges []struct {
		MinCents     *float64 `json:"min_cents"`
		MaxCents     *float64 `json:"max_cents"`
		CurrencyType string   `json:"currency_type"`
		Title        string   `json:"title"`
	} `json:"pay_input_ranges"`
}

// metadataValue 返回指定字段的值，数组值用逗号拼接，字段名不区分大小写。
func (j greenhouseJob) metadataValue(name string) string {
	for _, m := range j.Metadata {
		if !strings.EqualFold(strings.TrimSpace(m.Name), name) {
			continue
		}
		var s string
		if err := json.Unmarshal(m.Value, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var list []string
		if err := json.Unmarshal(m.Value, &list); err == nil {
			return strings.Join(list, ", ")
		}
	}
	return ""
}

func (j greenhouseJob) salary() model.Salary {
	if len(j.PayInputRanges) == 0 {
		return model.Salary{}
	}
	r := j.PayInputRanges[0]
	var min, max *float64
	if r.MinCents != nil {
		min = floatPtr(*r.MinCents / 100)
	}
	if r.MaxCents != nil {
		max = floatPtr(*r.MaxCents / 100)
	}
	return newSalary(min, max, r.CurrencyType, r.Title)
}
