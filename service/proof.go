package service

import (
	"context"

	"driverledger/pkg/address"
	"driverledger/pkg/models"
)

// ProofRedeemer consumes the reviewer's proof-of-service credential for a
// driver. It runs inside the review transaction; an error aborts the review.
type ProofRedeemer interface {
	Redeem(ctx context.Context, driverRef address.Address, reviewer models.Identity) error
}

// NopProofRedeemer accepts every review. No credential scheme is defined yet.
type NopProofRedeemer struct{}

func (NopProofRedeemer) Redeem(context.Context, address.Address, models.Identity) error {
	return nil
}
