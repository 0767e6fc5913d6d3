// Package store persists radio parameter snapshots to a local SQLite
// database so the API can serve recent signal history.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cellwatch/cellmon/cellinfo"
)

// Snapshot is one stored refresh result for a device.
type Snapshot struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	Handle  int   `gorm:"index" json:"handle"`
	RssiDbm int32 `json:"rssiDbm"`
	RsrpDbm int32 `json:"rsrpDbm"`
	RsrqDb  int32 `json:"rsrqDb"`
	RxQual  int32 `json:"rxQual"`
	CellID  int32 `json:"cellId"`
	Earfcn  int32 `json:"earfcn"`

	// SnrDb is only meaningful when SnrKnown is set; the derivation needs
	// both a usable RSSI and RSRP.
	SnrDb    int32 `json:"snrDb"`
	SnrKnown bool  `json:"snrKnown"`

	CreatedAt time.Time `json:"createdAt"`
}

// Store wraps the snapshot database.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// SaveSnapshot records a refresh result for the given device handle.
func (s *Store) SaveSnapshot(handle int, p cellinfo.RadioParameters, snrDb int32, snrKnown bool) error {
	snap := Snapshot{
		Handle:   handle,
		RssiDbm:  p.RssiDbm,
		RsrpDbm:  p.RsrpDbm,
		RsrqDb:   p.RsrqDb,
		RxQual:   p.RxQual,
		CellID:   p.CellID,
		Earfcn:   p.Earfcn,
		SnrDb:    snrDb,
		SnrKnown: snrKnown,
	}
	return s.db.Create(&snap).Error
}

// RecentSnapshots returns up to limit snapshots for a device, newest first.
func (s *Store) RecentSnapshots(handle int, limit int) ([]Snapshot, error) {
	var snaps []Snapshot
	err := s.db.Where("handle = ?", handle).
		Order("id desc").
		Limit(limit).
		Find(&snaps).Error
	return snaps, err
}

// Prune deletes snapshots for a device beyond the newest keep entries.
func (s *Store) Prune(handle int, keep int) error {
	sub := s.db.Model(&Snapshot{}).
		Select("id").
		Where("handle = ?", handle).
		Order("id desc").
		Limit(keep)
	return s.db.Where("handle = ? AND id NOT IN (?)", handle, sub).
		Delete(&Snapshot{}).Error
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
