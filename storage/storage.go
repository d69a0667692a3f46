package storage

import (
	"context"

	"driverledger/pkg/address"
	"driverledger/pkg/models"
)

const (
	KindPlatform = "platform"
	KindDriver   = "driver"
	KindPlate    = "plate"
	KindReview   = "review"
)

// Record is the stored form of every registry entity. Version starts at 1 and
// increases whenever a committed transaction mutates the record.
type Record struct {
	Address address.Address
	Kind    string
	Payer   models.Identity
	Data    []byte
	Version int64
}

type IStorage interface {
	Registry() IRegistryStorage
	Close()
}

type IRegistryStorage interface {
	Read(ctx context.Context, addr address.Address) (*Record, error)
	// InTx runs fn as one all-or-nothing unit. Any error from fn, or from the
	// commit itself, discards every write fn made.
	InTx(ctx context.Context, fn func(tx ITx) error) error
}

// MutateFunc receives a private copy of the record payload and returns the new one.
type MutateFunc func(data []byte) ([]byte, error)

type ITx interface {
	Read(ctx context.Context, addr address.Address) (*Record, error)
	Create(ctx context.Context, addr address.Address, payer models.Identity, kind string, data []byte) (*Record, error)
	Mutate(ctx context.Context, addr address.Address, fn MutateFunc) (*Record, error)
}

// CheckSize rejects payloads that do not fit the configured record size.
// A non-positive limit disables the check.
func CheckSize(data []byte, limit int) error {
	if limit > 0 && len(data) > limit {
		return ErrInsufficientResources
	}
	return nil
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}
