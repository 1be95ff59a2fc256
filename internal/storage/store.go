package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ats-radar/internal/model"

	"github.com/gosimple/slug"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 描述数据库连接。
type Config struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// Store 封装数据库访问，负责职位、公司与抓取记录的读写。
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// UpsertResult 表示一批职位的写入结果。单条失败不会中断整批。
type UpsertResult struct {
	Persisted int
	Failed    int
	Created   int
	NewJobs   []model.Job
	Errors    []error
}

// JobQuery 提供职位查询过滤条件，零值字段不参与过滤。
type JobQuery struct {
	Category string
	Tag      string
	Scope    model.LocationScope
	Source   string
	Status   model.JobStatus
	Limit    int
	Offset   int
}

// upsertColumns 是重复观测到职位时需要刷新的列，created_at 与 company 外的全部内容。
var upsertColumns = []string{
	"company_id",
	"company_name",
	"company_logo_url",
	"title",
	"raw_description",
	"description",
	"short_description",
	"apply_url",
	"posted_at",
	"category",
	"tags",
	"location_scope",
	"location_text",
	"contract_type",
	"salary_min",
	"salary_max",
	"salary_currency",
	"salary_interval",
	"status",
	"closed_at",
	"sync_id",
	"last_synced_at",
	"updated_at",
}

// Open 按驱动打开数据库并自动迁移数据表。
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}

	if err := db.AutoMigrate(&model.Company{}, &model.Job{}, &model.SyncRun{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// NewStore 打开本地 SQLite 文件。
func NewStore(dbPath string) (*Store, error) {
	return Open(Config{Driver: DriverSQLite, DSN: dbPath})
}

func ensureDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// EnsureCompany 按名称 slug 查找公司，不存在则创建；已有记录缺少 logo 时补齐。
func (s *Store) EnsureCompany(ctx context.Context, name, logoURL string) (model.Company, error) {
	key := slug.Make(name)
	if key == "" {
		return model.Company{}, fmt.Errorf("ensure company: empty slug for %q", name)
	}

	company := model.Company{Slug: key, Name: name, LogoURL: logoURL}
	tx := s.db.WithContext(ctx).Where(model.Company{Slug: key}).FirstOrCreate(&company)
	if tx.Error != nil {
		return model.Company{}, fmt.Errorf("ensure company %s: %w", key, tx.Error)
	}

	if company.LogoURL == "" && logoURL != "" {
		if err := s.db.WithContext(ctx).Model(&company).Update("logo_url", logoURL).Error; err != nil {
			return model.Company{}, fmt.Errorf("update company logo %s: %w", key, err)
		}
		company.LogoURL = logoURL
	}
	return company, nil
}

// UpsertJob 按 ID 写入单个职位，已存在则更新并重新激活，返回是否为新建。
func (s *Store) UpsertJob(ctx context.Context, job model.Job) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", job.ID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("query job %s: %w", job.ID, err)
	}

	job.Status = model.JobStatusActive
	job.ClosedAt = nil
	// SQLite 以带时区偏移的文本保存时间并按字符串比较，统一存为 UTC。
	job.LastSyncedAt = job.LastSyncedAt.UTC()
	job.PostedAt = job.PostedAt.UTC()
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&job)
	if tx.Error != nil {
		return false, fmt.Errorf("upsert job %s: %w", job.ID, tx.Error)
	}
	return count == 0, nil
}

// UpsertJobs 逐条写入职位，记录失败条数而不是整体回滚。
func (s *Store) UpsertJobs(ctx context.Context, jobs []model.Job) UpsertResult {
	res := UpsertResult{}
	for _, job := range jobs {
		created, err := s.UpsertJob(ctx, job)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Persisted++
		if created {
			res.Created++
			res.NewJobs = append(res.NewJobs, job)
		}
	}
	return res
}

// CloseStaleJobs 关闭指定来源中 last_synced_at 早于 before 的活跃职位。
func (s *Store) CloseStaleJobs(ctx context.Context, source string, before time.Time) (int64, error) {
	tx := s.activeJobs(ctx, source).
		Where("last_synced_at < ?", before.UTC()).
		Updates(s.closedValues())
	if tx.Error != nil {
		return 0, fmt.Errorf("close stale jobs: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// CloseJobsNotInSync 关闭指定来源中 sync_id 不是 syncID 的活跃职位。
func (s *Store) CloseJobsNotInSync(ctx context.Context, source, syncID string) (int64, error) {
	tx := s.activeJobs(ctx, source).
		Where("sync_id <> ?", syncID).
		Updates(s.closedValues())
	if tx.Error != nil {
		return 0, fmt.Errorf("close jobs not in sync: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

func (s *Store) activeJobs(ctx context.Context, source string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Job{}).
		Where("source = ? AND status = ?", source, model.JobStatusActive)
}

func (s *Store) closedValues() map[string]any {
	now := s.now().UTC()
	return map[string]any{
		"status":     model.JobStatusClosed,
		"closed_at":  now,
		"updated_at": now,
	}
}

// ListJobs 返回按发布时间倒序的职位列表。
func (s *Store) ListJobs(ctx context.Context, q JobQuery) ([]model.Job, error) {
	var jobs []model.Job
	if q.Offset < 0 {
		q.Offset = 0
	}

	query := s.applyJobFilters(s.db.WithContext(ctx).Model(&model.Job{}), q).Order("posted_at DESC").Order("id")
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs 返回满足过滤条件的职位数量。
func (s *Store) CountJobs(ctx context.Context, q JobQuery) (int64, error) {
	var total int64
	query := s.applyJobFilters(s.db.WithContext(ctx).Model(&model.Job{}), q)
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return total, nil
}

// GetJob 根据 ID 获取职位。
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// RecordSyncRun 写入或更新一次抓取记录。
func (s *Store) RecordSyncRun(ctx context.Context, run *model.SyncRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("record sync run %s: %w", run.ID, err)
	}
	return nil
}

// ListSyncRuns 返回最近的抓取记录，source 为空时返回全部来源。
func (s *Store) ListSyncRuns(ctx context.Context, source string, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if source != "" {
		query = query.Where("source = ?", source)
	}
	var runs []model.SyncRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	return runs, nil
}

func (s *Store) applyJobFilters(db *gorm.DB, q JobQuery) *gorm.DB {
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if q.Scope != "" {
		db = db.Where("location_scope = ?", q.Scope)
	}
	if q.Source != "" {
		db = db.Where("source = ?", q.Source)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Tag != "" {
		db = s.whereTag(db, q.Tag)
	}
	return db
}

// whereTag 按方言匹配 JSON 数组中的标签。
func (s *Store) whereTag(db *gorm.DB, tag string) *gorm.DB {
	if s.db.Dialector.Name() == DriverPostgres {
		needle, _ := json.Marshal([]string{tag})
		return db.Where("tags::jsonb @> ?::jsonb", string(needle))
	}
	return db.Where("EXISTS (SELECT 1 FROM json_each(jobs.tags) WHERE json_each.value = ?)", tag)
}
