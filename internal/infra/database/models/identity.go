package models

import (
	"time"
)

type Identity struct {
	Address string    `json:"address" gorm:"primaryKey;type:text"`
	Email   *string   `json:"email" gorm:"type:text"`
	CDate   time.Time `json:"cdate" gorm:"autoCreateTime;not null"`
	MDate   time.Time `json:"mdate" gorm:"autoUpdateTime;not null"`
}

func (Identity) TableName() string {
	return "users"
}
