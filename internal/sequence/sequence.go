// Package sequence hands out gapless per-prefix serial numbers for
// invoice documents, e.g. INV-2026-000042.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/faktur/internal/entitylock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SerialNumber tracks the last issued number per prefix and year.
type SerialNumber struct {
	ID      string `gorm:"primaryKey"`
	Prefix  string `gorm:"not null"`
	Year    int    `gorm:"not null"`
	Current int64  `gorm:"not null;default:0"`
}

// TableName sets the database table name.
func (SerialNumber) TableName() string { return "serial_numbers" }

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Locks *entitylock.Manager
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	locks *entitylock.Manager
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("sequence"),
		locks: p.Locks,
	}
}

// Next returns the next serial number for prefix in the current year. The
// counter row is guarded by an entity lease so concurrent invoice creation
// never issues a duplicate.
func (s *Service) Next(ctx context.Context, prefix string) (string, error) {
	year := time.Now().UTC().Year()
	key := fmt.Sprintf("%s:%d", prefix, year)

	lease, err := s.locks.Acquire(ctx, entitylock.KindSequence, key)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	var serial SerialNumber
	err = s.db.WithContext(ctx).
		Where("prefix = ? AND year = ?", prefix, year).
		First(&serial).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		serial = SerialNumber{ID: key, Prefix: prefix, Year: year, Current: 1}
		if err := s.db.WithContext(ctx).Create(&serial).Error; err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		serial.Current++
		if err := s.db.WithContext(ctx).Save(&serial).Error; err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%s-%d-%06d", prefix, year, serial.Current), nil
}

var Module = fx.Module("sequence",
	fx.Provide(New),
)
