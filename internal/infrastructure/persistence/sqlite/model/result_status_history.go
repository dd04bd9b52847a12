package model

import "time"

type ResultStatusHistory struct {
	HistoryID  uint64    `gorm:"column:history_id;primaryKey;autoIncrement"`
	ResultID   uint64    `gorm:"column:result_id;not null;index"`
	FromStatus *int      `gorm:"column:from_status"`
	ToStatus   int       `gorm:"column:to_status;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (ResultStatusHistory) TableName() string {
	return "result_status_history"
}
