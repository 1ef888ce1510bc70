// Package model 定义排班平台的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus 草稿生命周期状态
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusPublished DraftStatus = "published"
	DraftStatusArchived  DraftStatus = "archived"
)

// ScheduleDraft 排班草稿
type ScheduleDraft struct {
	BaseModel
	BizID       uuid.UUID   `json:"biz_id" db:"biz_id"`
	CreatedBy   string      `json:"created_by" db:"created_by"`
	Range       DateRange   `json:"range" db:"-"`
	Status      DraftStatus `json:"status" db:"status"`
	AIGenerated bool        `json:"ai_generated" db:"ai_generated"`
	Params      JSONMap     `json:"generation_params,omitempty" db:"params"`
	Confidence  float64     `json:"confidence" db:"confidence"` // 0-1，分配置信度聚合
	Version     int         `json:"version" db:"version"`
	PublishedAt *time.Time  `json:"published_at,omitempty" db:"published_at"`
}

// Mutable 检查草稿是否可修改
func (d *ScheduleDraft) Mutable() bool {
	return d.Status == DraftStatusDraft
}

// Factor 评分因子（用于推理说明）
type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// DraftAssignment 草稿内的排班分配
type DraftAssignment struct {
	BaseModel
	DraftID        uuid.UUID `json:"draft_id" db:"draft_id"`
	ShiftID        uuid.UUID `json:"shift_id" db:"shift_id"`
	StaffID        uuid.UUID `json:"staff_id" db:"staff_id"`
	Confidence     float64   `json:"confidence" db:"confidence"` // 0-1
	Reasoning      string    `json:"reasoning" db:"reasoning"`
	Factors        []Factor  `json:"factors,omitempty" db:"-"`
	AIGenerated    bool      `json:"is_ai_generated" db:"is_ai_generated"`
	ManualOverride bool      `json:"manual_override" db:"manual_override"`
	OverrideNote   string    `json:"override_note,omitempty" db:"override_note"`
}

// PublishedSchedule 已发布的正式排班（与草稿分开持久化）
type PublishedSchedule struct {
	BaseModel
	BizID       uuid.UUID `json:"biz_id" db:"biz_id"`
	DraftID     uuid.UUID `json:"draft_id" db:"draft_id"`
	Range       DateRange `json:"range" db:"-"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
}

// PublishedAssignment 已发布的排班分配（不可变历史记录）
type PublishedAssignment struct {
	BaseModel
	ScheduleID uuid.UUID `json:"schedule_id" db:"schedule_id"`
	ShiftID    uuid.UUID `json:"shift_id" db:"shift_id"`
	StaffID    uuid.UUID `json:"staff_id" db:"staff_id"`
	Date       string    `json:"date" db:"date"`
	StartTime  string    `json:"start_time" db:"start_time"`
	EndTime    string    `json:"end_time" db:"end_time"`
	Skill      string    `json:"skill" db:"skill"`
	Hours      float64   `json:"hours" db:"hours"`
}

// NotificationType 通知类型
type NotificationType string

const (
	NotifyNewSchedule    NotificationType = "new_schedule"
	NotifyScheduleChange NotificationType = "schedule_change"
)

// NotificationStatus 通知投递状态
type NotificationStatus string

const (
	NotifyPending   NotificationStatus = "pending"
	NotifySent      NotificationStatus = "sent"
	NotifyDelivered NotificationStatus = "delivered"
	NotifyFailed    NotificationStatus = "failed"
)

// ScheduleNotification 排班通知（交给外部投递服务）
type ScheduleNotification struct {
	BaseModel
	DraftID    uuid.UUID          `json:"draft_id" db:"draft_id"`
	StaffID    uuid.UUID          `json:"staff_id" db:"staff_id"`
	Type       NotificationType   `json:"notification_type" db:"notification_type"`
	Channel    string             `json:"channel" db:"channel"` // whatsapp/sms/email
	Content    string             `json:"content" db:"content"`
	Status     NotificationStatus `json:"status" db:"status"`
	ExternalID string             `json:"external_message_id,omitempty" db:"external_message_id"`
	SentAt     *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
}
