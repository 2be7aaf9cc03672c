// Package store persists payment records. The repository interface keeps
// the verification service storage-agnostic; the gorm implementation backs
// it with Postgres in production and sqlite in tests.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thisyearnofear/writersarcade-sub002/types"
)

var (
	ErrNotFound  = errors.New("payment record not found")
	ErrDuplicate = errors.New("payment record already exists")
)

// PaymentRecord is the persisted state of one payment. TxHash is unique;
// records are created pending and move exactly once to a terminal status.
type PaymentRecord struct {
	ID         string              `gorm:"type:uuid;primaryKey" json:"id"`
	TxHash     string              `gorm:"uniqueIndex;size:66;not null" json:"txHash"`
	TokenID    string              `gorm:"size:64;not null;index" json:"tokenId"`
	Action     types.PaymentAction `gorm:"size:32;not null" json:"action"`
	Status     types.PaymentStatus `gorm:"size:16;not null;index" json:"status"`
	Amount     string              `gorm:"type:decimal(78,0);not null" json:"amount"`
	UserID     string              `gorm:"size:64" json:"userId,omitempty"`
	VerifiedAt *time.Time          `json:"verifiedAt,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Store is the repository consumed by the verification service.
type Store interface {
	Create(ctx context.Context, record *PaymentRecord) error
	FindByHash(ctx context.Context, txHash string) (*PaymentRecord, error)
	FindByID(ctx context.Context, id string) (*PaymentRecord, error)
	ListPending(ctx context.Context, limit int) ([]PaymentRecord, error)
	// UpdateStatus moves a pending record to a terminal status. It is a
	// no-op returning the stored record when the record is already
	// terminal, which makes concurrent confirmers safe.
	UpdateStatus(ctx context.Context, id string, status types.PaymentStatus, verifiedAt time.Time) (*PaymentRecord, error)
}

// GormStore implements Store on a gorm connection.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&PaymentRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, record *PaymentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = types.StatusPending
	}
	err := s.db.WithContext(ctx).Create(record).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) FindByHash(ctx context.Context, txHash string) (*PaymentRecord, error) {
	var record PaymentRecord
	err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*PaymentRecord, error) {
	var record PaymentRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *GormStore) ListPending(ctx context.Context, limit int) ([]PaymentRecord, error) {
	var records []PaymentRecord
	q := s.db.WithContext(ctx).
		Where("status = ?", types.StatusPending).
		Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateStatus is guarded by a status = pending predicate so the
// transition is monotonic even when two confirmers race: the first write
// wins and later attempts read back the terminal record unchanged.
func (s *GormStore) UpdateStatus(ctx context.Context, id string, status types.PaymentStatus, verifiedAt time.Time) (*PaymentRecord, error) {
	if !status.Terminal() {
		return nil, errors.New("status update must be terminal")
	}

	res := s.db.WithContext(ctx).
		Model(&PaymentRecord{}).
		Where("id = ? AND status = ?", id, types.StatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"verified_at": verifiedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	return s.FindByID(ctx, id)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint violation")
}
