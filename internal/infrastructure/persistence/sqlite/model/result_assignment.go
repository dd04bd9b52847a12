package model

type ResultAssignedUser struct {
	ResultID uint64 `gorm:"column:result_id;not null;primaryKey"`
	UserID   string `gorm:"column:user_id;type:text;not null;primaryKey"`
}

func (ResultAssignedUser) TableName() string {
	return "result_assigned_users"
}

type ResultAssignedGroup struct {
	ResultID uint64 `gorm:"column:result_id;not null;primaryKey"`
	GroupID  string `gorm:"column:group_id;type:text;not null;primaryKey"`
}

func (ResultAssignedGroup) TableName() string {
	return "result_assigned_groups"
}
