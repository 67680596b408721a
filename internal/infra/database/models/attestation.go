package models

import (
	"time"

	"gorm.io/datatypes"
)

type Attestation struct {
	ID            string         `json:"id" gorm:"primaryKey;type:text"`
	Schema        string         `json:"schema" gorm:"type:text;not null;index:idx_attestations_schema_indexing_value,priority:1"`
	IndexingValue string         `json:"indexing_value" gorm:"type:text;not null;index:idx_attestations_schema_indexing_value,priority:2"`
	Attester      string         `json:"attester" gorm:"type:text;not null;index"`
	Value         datatypes.JSON `json:"value"`
	Document      string         `json:"document" gorm:"type:text;not null"`
	Proof         string         `json:"proof" gorm:"type:text;not null"`
	SignedAt      time.Time      `json:"signed_at" gorm:"not null;index"`
	CDate         time.Time      `json:"cdate" gorm:"autoCreateTime;not null"`
}
