package service

import (
	"fmt"

	"driverledger/pkg/address"
	"driverledger/pkg/models"
	"driverledger/storage"
)

func PlatformAddress(owner models.Identity) address.Address {
	return address.Derive(address.NamespacePlatform, []byte(owner))
}

func DriverAddress(driver models.Identity) address.Address {
	return address.Derive(address.NamespaceDriver, []byte(driver))
}

// PlateAddress expects a plate already passed through NormalizePlate.
func PlateAddress(plate string) address.Address {
	return address.Derive(address.NamespacePlate, []byte(plate))
}

func ReviewAddress(driverRef address.Address, index uint64) address.Address {
	return address.Derive(address.NamespaceReview, driverRef.Bytes(), address.Uint64LE(index))
}

// decode unpacks rec into T, refusing records of another kind so that a
// platform address can never be read as a driver.
func decode[T any](rec *storage.Record, kind string) (*T, error) {
	if rec.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", storage.ErrRecordNotFound, rec.Address, rec.Kind, kind)
	}
	var v T
	if err := storage.Decode(rec.Data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// mutateAs decodes a record payload as T, applies fn and re-encodes it.
func mutateAs[T any](fn func(v *T) error) storage.MutateFunc {
	return func(data []byte) ([]byte, error) {
		var v T
		if err := storage.Decode(data, &v); err != nil {
			return nil, err
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return storage.Encode(&v)
	}
}
