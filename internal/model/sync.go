package model

import "time"

// Company 公司信息，按 slug 去重。
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"uniqueIndex" json:"slug"`
	Name      string    `json:"name"`
	LogoURL   string    `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncRun 记录单个来源的一次抓取，ID 即该次抓取的 sync id。
type SyncRun struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	Source        string     `gorm:"index" json:"source"`
	StartedAt     time.Time  `gorm:"index" json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Listed        int        `json:"listed"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	Rejected      int        `json:"rejected"`
	Persisted     int        `json:"persisted"`
	PersistFailed int        `json:"persist_failed"`
	Created       int        `json:"created"`
	Closed        int64      `json:"closed"`
	GCStrategy    string     `json:"gc_strategy,omitempty"`
	GCSkipped     bool       `json:"gc_skipped"`
	Error         string     `json:"error,omitempty"`
}
