package model

import "time"

type Result struct {
	ResultID           uint64     `gorm:"column:result_id;primaryKey;autoIncrement"`
	Slug               string     `gorm:"column:slug;type:text;not null;uniqueIndex:idx_results_slug_identifier"`
	Identifier         string     `gorm:"column:identifier;type:varchar(256);not null;uniqueIndex:idx_results_slug_identifier"`
	Status             int        `gorm:"column:status;not null;default:0"`
	Data               string     `gorm:"column:data;type:text;not null"`
	Config             string     `gorm:"column:config;type:text;not null"`
	PayloadDescription string     `gorm:"column:payload_description;type:text;not null"`
	AcknowledgedBy     *string    `gorm:"column:acknowledged_by;type:text"`
	AcknowledgedAt     *time.Time `gorm:"column:acknowledged_at"`
	AcknowledgedUntil  *time.Time `gorm:"column:acknowledged_until"`
	AcknowledgedReason string     `gorm:"column:acknowledged_reason;type:text;not null;default:''"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null"`
}

func (Result) TableName() string {
	return "results"
}
