package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ats-radar/internal/model"

	"github.com/rs/zerolog"
)

const ghBase = "https://boards.test/v1/boards"

func ghDetail(id, title, content, location, metadata, pay string) string {
	return `{"id":` + id + `,"title":"` + title + `","company_name":"Board Name","updated_at":"2025-03-01T10:00:00-03:00",` +
		`"first_published":"2025-02-20T09:00:00Z","absolute_url":"https://boards.greenhouse.io/studio/jobs/` + id + `",` +
		`"content":"` + content + `","location":{"name":"` + location + `"},"metadata":` + metadata + `,"pay_input_ranges":` + pay + `}`
}

func TestGreenhouseFetchSkipsTimedOutDetail(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	rt := newStubRoundTripper(map[string]string{
		ghBase + "/studio/jobs": `{"jobs":[{"id":1,"title":"Senior 3D Artist"},{"id":2,"title":"Animator"},{"id":3,"title":"Concept Artist"}],"meta":{"total":3}}`,
		ghBase + "/studio/jobs/1?pay_transparency=true": ghDetail("1", "Senior 3D Artist",
			`&lt;p&gt;We need a &lt;b&gt;3D artist&lt;/b&gt; who models stylised props in Blender for our mobile games.&lt;/p&gt;`,
			"São Paulo, Brazil",
			`[{"id":10,"name":"Work Model","value":"Remote","value_type":"single_select"},{"id":11,"name":"Employment Type","value":"Full-time"}]`,
			`[{"min_cents":800000,"max_cents":1200000,"currency_type":"brl","title":"Monthly salary"}]`),
		ghBase + "/studio/jobs/3?pay_transparency=true": ghDetail("3", "Concept Artist",
			`&lt;p&gt;Paint characters and worlds in Photoshop for our next game.&lt;/p&gt;`,
			"Remote - LATAM", `null`, `[]`),
	}, &hits)
	rt.block[ghBase+"/studio/jobs/2?pay_transparency=true"] = true

	var logs bytes.Buffer
	var delays atomic.Int32
	f := NewGreenhouseFetcher(
		SourceConfig{Enabled: true, BaseURL: ghBase, Boards: []Board{{Token: "studio", Company: "Cozy Studio"}}},
		time.Second,
		newTestNormalizer(t),
		&http.Client{Transport: rt, Timeout: 50 * time.Millisecond},
		WithLogger(zerolog.New(&logs)),
		WithClock(fixedClock()),
		WithSleep(func(context.Context, time.Duration) error { delays.Add(1); return nil }),
	)

	batch, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(batch.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(batch.Jobs))
	}
	if batch.Jobs[0].ID != "greenhouse-1" || batch.Jobs[1].ID != "greenhouse-3" {
		t.Fatalf("unexpected job order: %s, %s", batch.Jobs[0].ID, batch.Jobs[1].ID)
	}
	if batch.Failed != 1 || batch.Listed != 3 || batch.Complete() {
		t.Fatalf("unexpected counts: %+v", batch)
	}
	if !strings.HasPrefix(batch.Summary(), "2 successful, 1 failed") {
		t.Fatalf("unexpected summary %q", batch.Summary())
	}
	if delays.Load() != 2 {
		t.Fatalf("expected a delay before each detail after the first, got %d", delays.Load())
	}
	if !strings.Contains(logs.String(), `"job_id":2`) || !strings.Contains(logs.String(), "fetch job detail failed") {
		t.Fatalf("expected error log for job 2, got %s", logs.String())
	}

	first := batch.Jobs[0]
	if first.CompanyName != "Cozy Studio" || first.Category != "3D" {
		t.Fatalf("unexpected company/category: %s / %s", first.CompanyName, first.Category)
	}
	if first.Location.Scope != model.ScopeRemoteBrazil || first.Location.Text != "São Paulo, Brazil" {
		t.Fatalf("unexpected location: %+v", first.Location)
	}
	if first.ContractType != model.ContractFullTime {
		t.Fatalf("unexpected contract type %q", first.ContractType)
	}
	if first.Salary.Min == nil || *first.Salary.Min != 8000 || *first.Salary.Max != 12000 || first.Salary.Currency != "BRL" || first.Salary.Interval != "month" {
		t.Fatalf("unexpected salary: %+v", first.Salary)
	}
	if strings.Contains(first.Description, "<") || !strings.Contains(first.Description, "**3D artist**") {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if got := []string(first.Tags); len(got) != 3 || got[0] != "Blender" || got[1] != "Mobile" || got[2] != "Senior" {
		t.Fatalf("unexpected tags %v", got)
	}
	if !first.PostedAt.Equal(time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted at %s", first.PostedAt)
	}
	if first.SyncID == "" || first.SyncID != batch.SyncID || !first.LastSyncedAt.Equal(fixedClock()()) {
		t.Fatalf("sync stamp missing: %s %s", first.SyncID, first.LastSyncedAt)
	}

	third := batch.Jobs[1]
	if third.Category != "2D Art" || third.Location.Scope != model.ScopeRemoteLatam || !third.Salary.IsZero() {
		t.Fatalf("unexpected third job: %+v", third)
	}
	if third.SyncID != first.SyncID {
		t.Fatalf("jobs of one run must share the sync id")
	}
}

func TestGreenhouseFetchFailsWhenEveryBoardFails(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	rt := newStubRoundTripper(map[string]string{
		ghBase + "/ok/jobs": `{"jobs":[]}`,
	}, &hits)

	cfg := SourceConfig{Enabled: true, BaseURL: ghBase, Boards: []Board{{Token: "gone"}}}
	f := NewGreenhouseFetcher(cfg, 0, newTestNormalizer(t), &http.Client{Transport: rt}, WithSleep(noSleep))
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error when the only board fails")
	}

	cfg.Boards = append(cfg.Boards, Board{Token: "ok"})
	f = NewGreenhouseFetcher(cfg, 0, newTestNormalizer(t), &http.Client{Transport: rt}, WithSleep(noSleep))
	batch, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("partial board failure should not fail the source: %v", err)
	}
	if len(batch.Errors) != 1 || batch.Complete() {
		t.Fatalf("expected one board error, got %+v", batch.Errors)
	}
}
