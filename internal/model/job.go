package model

import (
	"time"

	"gorm.io/datatypes"
)

// LocationScope 描述职位的工作地点范围。
type LocationScope string

const (
	ScopeRemoteBrazil    LocationScope = "remote-brazil"
	ScopeRemoteLatam     LocationScope = "remote-latam"
	ScopeRemoteWorldwide LocationScope = "remote-worldwide"
	ScopeHybrid          LocationScope = "hybrid"
	ScopeOnsite          LocationScope = "onsite"
)

// ContractType 为可选的合同类型，空字符串表示未知。
type ContractType string

const (
	ContractInternship ContractType = "Internship"
	ContractFreelance  ContractType = "Freelance"
	ContractCLT        ContractType = "CLT"
	ContractPJ         ContractType = "PJ"
	ContractB2B        ContractType = "B2B"
	ContractFullTime   ContractType = "Full-time"
	ContractPartTime   ContractType = "Part-time"
	ContractTemporary  ContractType = "Temporary"
)

// JobStatus 职位状态，只有 GC 会把职位标记为 closed。
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusClosed JobStatus = "closed"
)

// Location 为职位地点，Scope 为归一化枚举，Text 为来源原文。
type Location struct {
	Scope LocationScope `gorm:"column:scope;index" json:"scope" validate:"required,oneof=remote-brazil remote-latam remote-worldwide hybrid onsite"`
	Text  string        `gorm:"column:text" json:"text"`
}

// Salary 为可选薪资区间，Min/Max 为空表示来源未提供。
type Salary struct {
	Min      *float64 `gorm:"column:min" json:"min,omitempty"`
	Max      *float64 `gorm:"column:max" json:"max,omitempty"`
	Currency string   `gorm:"column:currency" json:"currency,omitempty"`
	Interval string   `gorm:"column:interval" json:"interval,omitempty"`
}

// IsZero 判断薪资是否为空。
func (s Salary) IsZero() bool {
	return s.Min == nil && s.Max == nil
}

// Job 是所有来源归一化后的职位记录，同时也是数据库行。
// - ID: "<source>-<externalID>"，不同来源之间不会冲突
// - RawDescription: 来源原始 HTML，保留用于审计与重新处理
// - Description: Markdown，永远不包含 HTML 标签
// - SyncID/LastSyncedAt: 每次抓取统一写入，仅供 GC 判断是否过期
type Job struct {
	ID               string                      `gorm:"primaryKey" json:"id" validate:"required"`
	Source           string                      `gorm:"index" json:"source" validate:"required"`
	ExternalID       string                      `json:"external_id" validate:"required"`
	CompanyID        uint                        `gorm:"index" json:"company_id,omitempty"`
	CompanyName      string                      `json:"company_name" validate:"required"`
	CompanyLogoURL   string                      `json:"company_logo_url,omitempty" validate:"omitempty,url"`
	Title            string                      `json:"title" validate:"required"`
	RawDescription   string                      `gorm:"type:text" json:"raw_description,omitempty"`
	Description      string                      `gorm:"type:text" json:"description"`
	ShortDescription string                      `json:"short_description" validate:"max=300"`
	ApplyURL         string                      `json:"apply_url" validate:"required,url"`
	PostedAt         time.Time                   `gorm:"index" json:"posted_at"`
	Category         string                      `gorm:"index" json:"category" validate:"required"`
	Tags             datatypes.JSONSlice[string] `json:"tags" validate:"max=10"`
	Location         Location                    `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	ContractType     ContractType                `json:"contract_type,omitempty"`
	Salary           Salary                      `gorm:"embedded;embeddedPrefix:salary_" json:"salary"`
	Status           JobStatus                   `gorm:"index;default:active" json:"status"`
	ClosedAt         *time.Time                  `json:"closed_at,omitempty"`
	SyncID           string                      `gorm:"index" json:"sync_id" validate:"required"`
	LastSyncedAt     time.Time                   `gorm:"index" json:"last_synced_at"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// JobID 生成带来源前缀的职位 ID。
func JobID(source, externalID string) string {
	return source + "-" + externalID
}
