package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&ProjectRecord{},
}

// ProjectRecord is one saved project. The full document lives in Document;
// the other columns are copies used for listing without decoding it.
// Timestamps come from the project, not from GORM.
type ProjectRecord struct {
	ID          string         `json:"id" gorm:"primaryKey;size:64"`
	Name        string         `json:"name" gorm:"size:100;index"`
	Sport       string         `json:"sport" gorm:"size:32"`
	FrameCount  int            `json:"frameCount"`
	EntityCount int            `json:"entityCount"`
	Bytes       int            `json:"bytes"`
	Document    datatypes.JSON `json:"document"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time      `json:"updatedAt" gorm:"autoUpdateTime:false;index"`
}

func (*ProjectRecord) TableName() string {
	return "projects"
}
