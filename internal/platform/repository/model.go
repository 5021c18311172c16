package repository

import "time"

// Column names the repository manages itself.
const (
	ColumnTenantID  = "tenant_id"
	ColumnIsDeleted = "is_deleted"
	ColumnDeletedAt = "deleted_at"
	ColumnSeq       = "seq"
)

// Model is the common identity and timestamp block embedded by entities.
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tenancy marks an entity as tenant-specific.
type Tenancy struct {
	TenantID string `gorm:"size:64;index;not null" json:"tenantId"`
}

// SetTenantID implements TenantStamper.
func (t *Tenancy) SetTenantID(id string) { t.TenantID = id }

// GetTenantID implements TenantStamper.
func (t *Tenancy) GetTenantID() string { return t.TenantID }

// SoftDeletable adds the tombstone columns used by the SoftDelete decorator.
type SoftDeletable struct {
	IsDeleted bool       `gorm:"not null;default:false;index" json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (s *SoftDeletable) softDeletable() {}

// Sequence adds an auto-increment surrogate number assigned at creation.
type Sequence struct {
	Seq int64 `gorm:"index" json:"seq"`
}

// SetSeq implements Sequenced.
func (s *Sequence) SetSeq(n int64) { s.Seq = n }

// TenantStamper is implemented by entities embedding Tenancy.
type TenantStamper interface {
	SetTenantID(id string)
	GetTenantID() string
}

// Sequenced is implemented by entities embedding Sequence.
type Sequenced interface {
	SetSeq(n int64)
}

type softDeleter interface {
	softDeletable()
}
