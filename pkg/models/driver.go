package models

import "driverledger/pkg/address"

type DriverProfile struct {
	Address      address.Address `json:"address"`
	Owner        Identity        `json:"owner"`
	PlatformRef  address.Address `json:"platform"`
	Name         string          `json:"name"`
	LicensePlate string          `json:"license_plate"`
	RatingSum    uint64          `json:"rating_sum"`
	ReviewCount  uint64          `json:"review_count"`
}

// LicensePlateMapping indexes a plate to the only driver allowed to carry it.
type LicensePlateMapping struct {
	Address      address.Address `json:"address"`
	LicensePlate string          `json:"license_plate"`
	DriverRef    address.Address `json:"driver"`
}

// AverageRating is the display average of the running totals. It reports
// false until the driver has a review.
func (d *DriverProfile) AverageRating() (float64, bool) {
	if d.ReviewCount == 0 {
		return 0, false
	}
	return float64(d.RatingSum) / float64(d.ReviewCount), true
}
