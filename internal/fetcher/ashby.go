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

const defaultAshbyBase = "https://api.ashbyhq.com/posting-api/job-board"

// AshbyFetcher 调用公开的 job board 接口，列表中包含描述与薪酬。
type AshbyFetcher struct {
	base
	baseURL string
}

// NewAshbyFetcher 创建 Ashby 抓取器。
func NewAshbyFetcher(cfg SourceConfig, delay time.Duration, n *Normalizer, client *http.Client, opts ...Option) *AshbyFetcher {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultAshbyBase
	}
	return &AshbyFetcher{
		base:    newBase(SourceAshby, cfg, delay, n, client, opts),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch 拉取各组织的职位，未公开（isListed=false）的职位不计入。
func (a *AshbyFetcher) Fetch(ctx context.Context) (Batch, error) {
	boards, err := a.boardsOrError()
	if err != nil {
		return Batch{Source: a.name}, err
	}

	batch := a.newBatch()
	var lastErr error
	for i, board := range boards {
		if i > 0 {
			if err := a.sleep(ctx, a.delay); err != nil {
				return batch, err
			}
		}

		var resp ashbyBoard
		listURL := a.baseURL + "/" + url.PathEscape(board.Token) + "?includeCompensation=true"
		if err := a.getJSON(ctx, listURL, &resp); err != nil {
			lastErr = fmt.Errorf("list organization %s: %w", board.Token, err)
			batch.Errors = append(batch.Errors, lastErr.Error())
			a.log.Error().Err(err).Str("board", board.Token).Msg("list jobs failed")
			continue
		}

		listed := 0
		for _, j := range resp.Jobs {
			if !j.IsListed {
				continue
			}
			listed++
			a.process(ctx, &batch, a.posting(board, j))
		}
		batch.Listed += listed
		a.log.Info().Str("board", board.Token).Int("jobs", listed).Msg("listed jobs")
	}
	return a.finish(batch, len(boards), lastErr)
}

func (a *AshbyFetcher) posting(board Board, j ashbyJob) Posting {
	company := board.Company
	if company == "" {
		company = board.Token
	}

	location := j.Location
	if country := j.Address.PostalAddress.AddressCountry; country != "" && !strings.Contains(strings.ToLower(location), strings.ToLower(country)) {
		location = strings.TrimPrefix(location+", "+country, ", ")
	}

	workModel := j.WorkplaceType
	if workModel == "" && j.IsRemote {
		workModel = "Remote"
	}

	apply := j.JobURL
	if apply == "" {
		apply = j.ApplyURL
	}

	return Posting{
		Source:         SourceAshby,
		ExternalID:     j.ID,
		Title:          j.Title,
		Company:        company,
		CompanyLogoURL: board.LogoURL,
		RawDescription: j.DescriptionHTML,
		ApplyURL:       apply,
		PostedAt:       j.PublishedAt,
		Scope:          ScopeFrom(workModel, location),
		LocationText:   location,
		EmploymentHint: j.EmploymentType,
		Salary:         j.salary(),
	}
}

type ashbyBoard struct {
	Jobs []ashbyJob `json:"jobs"`
}

type ashbyJob struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Location        string    `json:"location"`
	EmploymentType  string    `json:"employmentType"`
	PublishedAt     time.Time `json:"publishedAt"`
	IsListed        bool      `json:"isListed"`
	IsRemote        bool      `json:"isRemote"`
	WorkplaceType   string    `json:"workplaceType"`
	JobURL          string    `json:"jobUrl"`
	ApplyURL        string    `json:"applyUrl"`
	DescriptionHTML string    `json:"descriptionHtml"`
	Address         struct {
		PostalAddress struct {
			AddressCountry string `json:"addressCountry"`
		} `json:"postalAddress"`
	} `json:"address"`
	Compensation *struct {
		SummaryComponents []struct {
			CompensationType string   `json:"compensationType"`
			Interval         string   `json:"interval"`
			CurrencyCode     string   `json:"currencyCode"`
			MinValue         *float64 `json:"minValue"`
			MaxValue         *float64 `json:"maxValue"`
		} `json:"summaryComponents"`
	} `json:"compensation"`
}

// salary 取第一个 Salary 类型的薪酬组成部分。
func (j ashbyJob) salary() model.Salary {
	if j.Compensation == nil {
		return model.Salary{}
	}
	for _, c := range j.Compensation.SummaryComponents {
		if !strings.EqualFold(c.CompensationType, "salary") {
			continue
		}
		return newSalary(c.MinValue, c.MaxValue, c.CurrencyCode, c.Interval)
	}
	return model.Salary{}
}
