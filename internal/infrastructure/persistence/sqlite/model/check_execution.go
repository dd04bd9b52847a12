package model

import "time"

type CheckExecution struct {
	ExecutionID uint64    `gorm:"column:execution_id;primaryKey;autoIncrement"`
	Slug        string    `gorm:"column:slug;type:text;not null;uniqueIndex"`
	LastRun     time.Time `gorm:"column:last_run;not null"`
}

func (CheckExecution) TableName() string {
	return "check_executions"
}
