package models

import "driverledger/pkg/address"

// Review is written once and never mutated. ContentPointer references text
// kept outside the registry and is stored exactly as received.
type Review struct {
	Address        address.Address `json:"address"`
	DriverRef      address.Address `json:"driver"`
	Index          uint64          `json:"index"`
	Reviewer       Identity        `json:"reviewer"`
	Rating         uint8           `json:"rating"`
	ContentPointer string          `json:"content_pointer"`
}
