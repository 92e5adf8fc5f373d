package indexer

import (
	"time"

	"gorm.io/gorm"
)

// JobRow is the queryable projection of an escrow job.
type JobRow struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement:false"`
	Client            string `gorm:"index"`
	Freelancer        string `gorm:"index"`
	Amount            string `gorm:"not null"`
	Status            string `gorm:"index"`
	DeliveryReference string
	ReputationMinted  string
	DisputeID         uint64 `gorm:"index"`
	Resolved          bool
	SettledTo         string
	LastSeq           uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DisputeRow is the queryable projection of a DAO dispute.
type DisputeRow struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement:false"`
	JobID           uint64 `gorm:"index"`
	Client          string `gorm:"index"`
	Freelancer      string `gorm:"index"`
	Reason          string
	Fee             string
	VotesClient     uint64
	VotesFreelancer uint64
	Resolved        bool `gorm:"index"`
	Winner          string
	WinningSide     string
	LastSeq         uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JurorRow lists every registered juror.
type JurorRow struct {
	Address      string `gorm:"primaryKey"`
	RegisteredAt time.Time
	Seq          uint64
}

// EventRow keeps the raw record so that consumers can query by type.
type EventRow struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type       string `gorm:"index"`
	Attributes string `gorm:"type:text"`
	Time       time.Time
}

// Cursor records the last event sequence applied to the projection.
type Cursor struct {
	Name      string `gorm:"primaryKey"`
	Seq       uint64
	UpdatedAt time.Time
}

// AutoMigrate creates or updates the projection tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&JobRow{}, &DisputeRow{}, &JurorRow{}, &EventRow{}, &Cursor{})
}
