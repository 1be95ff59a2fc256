package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ats-radar/internal/model"
)

const defaultLeverBase = "https://api.lever.co/v0/postings"

// LeverFetcher 只需一次列表请求，列表中已包含描述。
type LeverFetcher struct {
	base
	baseURL string
}

// NewLeverFetcher 创建 Lever 抓取器。
func NewLeverFetcher(cfg SourceConfig, delay time.Duration, n *Normalizer, client *http.Client, opts ...Option) *LeverFetcher {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultLeverBase
	}
	return &LeverFetcher{
		base:    newBase(SourceLever, cfg, delay, n, client, opts),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch 拉取各站点的职位，职位板之间等待 request_delay。
func (l *LeverFetcher) Fetch(ctx context.Context) (Batch, error) {
	boards, err := l.boardsOrError()
	if err != nil {
		return Batch{Source: l.name}, err
	}

	batch := l.newBatch()
	var lastErr error
	for i, board := range boards {
		if i > 0 {
			if err := l.sleep(ctx, l.delay); err != nil {
				return batch, err
			}
		}

		var postings []leverPosting
		listURL := l.baseURL + "/" + url.PathEscape(board.Token) + "?mode=json"
		if err := l.getJSON(ctx, listURL, &postings); err != nil {
			lastErr = fmt.Errorf("list site %s: %w", board.Token, err)
			batch.Errors = append(batch.Errors, lastErr.Error())
			l.log.Error().Err(err).Str("board", board.Token).Msg("list postings failed")
			continue
		}
		batch.Listed += len(postings)
		l.log.Info().Str("board", board.Token).Int("jobs", len(postings)).Msg("listed jobs")

		for _, p := range postings {
			l.process(ctx, &batch, l.posting(board, p))
		}
	}
	return l.finish(batch, len(boards), lastErr)
}

func (l *LeverFetcher) posting(board Board, p leverPosting) Posting {
	company := board.Company
	if company == "" {
		company = board.Token
	}

	location := p.Categories.Location
	if location == "" && len(p.Categories.AllLocations) > 0 {
		location = strings.Join(p.Categories.AllLocations, ", ")
	}
	if country := countryName(p.Country); country != "" && !strings.Contains(strings.ToLower(location), strings.ToLower(country)) {
		location = strings.TrimPrefix(location+", "+country, ", ")
	}

	workModel := p.WorkplaceType
	if workModel == "unspecified" {
		workModel = ""
	}

	apply := p.HostedURL
	if apply == "" {
		apply = p.ApplyURL
	}

	var posted time.Time
	if p.CreatedAt > 0 {
		posted = time.UnixMilli(p.CreatedAt).UTC()
	}

	return Posting{
		Source:         SourceLever,
		ExternalID:     p.ID,
		Title:          p.Text,
		Company:        company,
		CompanyLogoURL: board.LogoURL,
		RawDescription: p.body(),
		ApplyURL:       apply,
		PostedAt:       posted,
		Scope:          ScopeFrom(workModel, location),
		LocationText:   location,
		EmploymentHint: p.Categories.Commitment,
		Salary:         p.salary(),
	}
}

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Categories struct {
		Commitment   string   `json:"commitment"`
		Location     string   `json:"location"`
		Team         string   `json:"team"`
		AllLocations []string `json:"allLocations"`
	} `json:"categories"`
	Country     string `json:"country"`
	Description string `json:"description"`
	Lists       []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	} `json:"lists"`
	Additional    string `json:"additional"`
	HostedURL     string `json:"hostedUrl"`
	ApplyURL      string `json:"applyUrl"`
	CreatedAt     int64  `json:"createdAt"`
	WorkplaceType string `json:"workplaceType"`
	SalaryRange   *struct {
		Min      *float64 `json:"min"`
		Max      *float64 `json:"max"`
		Currency string   `json:"currency"`
		Interval string   `json:"interval"`
	} `json:"salaryRange"`
}

// body 把描述、各个列表与附加说明拼成一段 HTML。
func (p leverPosting) body() string {
	var b strings.Builder
	b.WriteString(p.Description)
	for _, list := range p.Lists {
		if strings.TrimSpace(list.Content) == "" {
			continue
		}
		b.WriteString("<h3>" + list.Text + "</h3><ul>" + list.Content + "</ul>")
	}
	b.WriteString(p.Additional)
	return b.String()
}

func (p leverPosting) salary() model.Salary {
	if p.SalaryRange == nil {
		return model.Salary{}
	}
	r := p.SalaryRange
	return newSalary(r.Min, r.Max, r.Currency, r.Interval)
}

// countryName 把 Lever 的 ISO 国家代码转成地点文本里常见的写法。
func countryName(code string) string {
	switch strings.ToUpper(code) {
	case "BR":
		return "Brazil"
	case "AR":
		return "Argentina"
	case "MX":
		return "Mexico"
	case "CO":
		return "Colombia"
	case "CL":
		return "Chile"
	case "PE":
		return "Peru"
	case "UY":
		return "Uruguay"
	default:
		return code
	}
}
