// Package history records dispatched alerts in a local SQLite database for
// standalone runs where the AWS sinks are not the system of record.
package history

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ontapmon/internal/alert"
)

// Alert is one dispatched alert.
type Alert struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Cluster   string
	Severity  string
	Message   string
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening history database %s", path)
	}
	if err := db.AutoMigrate(&Alert{}); err != nil {
		return nil, errors.Wrap(err, "migrating history database")
	}
	return db, nil
}

// Sink adapts the history database to the alert sink interface.
type Sink struct {
	db *gorm.DB
}

func NewSink(db *gorm.DB) *Sink {
	return &Sink{db: db}
}

func (s *Sink) Name() string { return "history" }

func (s *Sink) Send(m alert.Message) error {
	rec := Alert{Cluster: m.Cluster, Severity: m.Severity.String(), Message: m.Text}
	return errors.Wrap(s.db.Create(&rec).Error, "recording alert")
}
