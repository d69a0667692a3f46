package models

import "driverledger/pkg/address"

type Platform struct {
	Address     address.Address `json:"address"`
	Owner       Identity        `json:"owner"`
	Name        string          `json:"name"`
	Verified    bool            `json:"verified"`
	DriverCount uint64          `json:"driver_count"`
}
