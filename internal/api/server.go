package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ats-radar/internal/model"
	"ats-radar/internal/orchestrator"
	"ats-radar/internal/scheduler"
	"ats-radar/internal/storage"

	"github.com/gin-gonic/gin"
)

// Store 抽象只读存储接口。
type Store interface {
	ListJobs(ctx context.Context, q storage.JobQuery) ([]model.Job, error)
	CountJobs(ctx context.Context, q storage.JobQuery) (int64, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListSyncRuns(ctx context.Context, source string, limit int) ([]model.SyncRun, error)
}

// Scheduler 抽象手动刷新接口。
type Scheduler interface {
	RunOnce(ctx context.Context, sources ...string) (orchestrator.Summary, error)
}

// jobListParams 是 /api/jobs 的查询参数。
type jobListParams struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Category string `form:"category"`
	Tag      string `form:"tag"`
	Scope    string `form:"scope" binding:"omitempty,oneof=remote-brazil remote-latam remote-worldwide hybrid onsite"`
	Source   string `form:"source"`
}

// SourceResult 是手动刷新中单个来源的结果。
type SourceResult struct {
	Source    string `json:"source"`
	Listed    int    `json:"listed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Rejected  int    `json:"rejected"`
	Persisted int    `json:"persisted"`
	Created   int    `json:"created"`
	Closed    int64  `json:"closed"`
	GCSkipped bool   `json:"gc_skipped"`
	Error     string `json:"error,omitempty"`
}

// NewHandler 构造 HTTP 路由。
func NewHandler(store Store, sched Scheduler) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/jobs", listJobs(store))
	api.GET("/jobs/:id", getJob(store))
	api.GET("/sync-runs", listSyncRuns(store))
	api.POST("/refresh", refresh(sched))

	return r
}

func listJobs(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params jobListParams
		if err := c.ShouldBindQuery(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit := params.Limit
		if limit == 0 {
			limit = 20
		}
		page := params.Page
		if page == 0 {
			page = 1
		}

		q := storage.JobQuery{
			Category: params.Category,
			Tag:      params.Tag,
			Scope:    model.LocationScope(params.Scope),
			Source:   params.Source,
			Status:   model.JobStatusActive,
			Limit:    limit + 1,
			Offset:   (page - 1) * limit,
		}
		jobs, err := store.ListJobs(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		total, err := store.CountJobs(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		hasMore := false
		if len(jobs) > limit {
			hasMore = true
			jobs = jobs[:limit]
		}
		if jobs == nil {
			jobs = []model.Job{}
		}

		c.Header("X-Page", strconv.Itoa(page))
		c.Header("X-Limit", strconv.Itoa(limit))
		c.Header("X-Has-More", strconv.FormatBool(hasMore))
		c.Header("X-Total", strconv.FormatInt(total, 10))
		c.JSON(http.StatusOK, jobs)
	}
}

func getJob(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := store.GetJob(c.Request.Context(), c.Param("id"))
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func listSyncRuns(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		runs, err := store.ListSyncRuns(c.Request.Context(), c.Query("source"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if runs == nil {
			runs = []model.SyncRun{}
		}
		c.JSON(http.StatusOK, runs)
	}
}

func refresh(sched Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sched == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh disabled"})
			return
		}
		// 客户端断开不应中断已经开始的多来源同步。
		summary, err := sched.RunOnce(context.WithoutCancel(c.Request.Context()), c.QueryArray("source")...)
		if errors.Is(err, scheduler.ErrRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		results := make([]SourceResult, 0, len(summary.Reports))
		for _, rep := range summary.Reports {
			res := SourceResult{
				Source:    rep.Source,
				Listed:    rep.Batch.Listed,
				Succeeded: rep.Batch.Succeeded(),
				Failed:    rep.Batch.Failed,
				Rejected:  rep.Batch.Rejected,
				Persisted: rep.Persisted,
				Created:   rep.Created,
				Closed:    rep.GC.Closed,
				GCSkipped: rep.GC.Skipped,
			}
			if rep.Err != nil {
				res.Error = rep.Err.Error()
			}
			results = append(results, res)
		}
		c.JSON(http.StatusOK, gin.H{
			"created": summary.Created(),
			"failed":  summary.Failed(),
			"sources": results,
		})
	}
}
