package models

import (
	"time"
)

// FlaggedSite is one rater's current verdict for a domain key.
type FlaggedSite struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	URL       string    `json:"url" gorm:"type:text;not null;uniqueIndex:idx_flagged_sites_url_flagged_by,priority:1"`
	FlaggedBy string    `json:"flagged_by" gorm:"type:text;not null;uniqueIndex:idx_flagged_sites_url_flagged_by,priority:2;index"`
	IsSafe    bool      `json:"is_safe" gorm:"not null;index"`
	CDate     time.Time `json:"cdate" gorm:"autoCreateTime;not null"`
	MDate     time.Time `json:"mdate" gorm:"not null;index"`
}
