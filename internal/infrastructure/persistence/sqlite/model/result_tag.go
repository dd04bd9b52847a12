package model

import "time"

type ResultTag struct {
	TagID     uint64    `gorm:"column:tag_id;primaryKey;autoIncrement"`
	ResultID  uint64    `gorm:"column:result_id;not null;uniqueIndex:idx_result_tags_result_text"`
	Text      string    `gorm:"column:text;type:text;not null;uniqueIndex:idx_result_tags_result_text"`
	Author    string    `gorm:"column:author;type:text;not null"`
	Category  int       `gorm:"column:category;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (ResultTag) TableName() string {
	return "result_tags"
}
