package domain

import (
	"time"

	"github.com/google/uuid"
)

// DealStatus is the deal lifecycle state. Disputed is reserved: it is a legal
// value but no transition in this core produces it.
type DealStatus string

const (
	DealNegotiating           DealStatus = "negotiating"
	DealPendingSellerApproval DealStatus = "pending_seller_approval"
	DealPendingBuyerApproval  DealStatus = "pending_buyer_approval"
	DealActive                DealStatus = "active"
	DealCancelled             DealStatus = "cancelled"
	DealDisputed              DealStatus = "disputed"
)

// Terminal reports whether no further decision can be submitted.
func (s DealStatus) Terminal() bool {
	return s == DealActive || s == DealCancelled
}

// DealAction is a party's decision on a pending deal.
type DealAction string

const (
	ActionApprove DealAction = "approve"
	ActionReject  DealAction = "reject"
)

func (a DealAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// DealRole is the actor's relation to a deal.
type DealRole string

const (
	RoleSeller DealRole = "seller"
	RoleBuyer  DealRole = "buyer"
	RoleNone   DealRole = ""
)

// Deal is a proposed bilateral trade settled by sequential seller-then-buyer
// approval. Mutated only through the approval state machine.
type Deal struct {
	ID               uuid.UUID
	SellerCompanyID  uuid.UUID
	BuyerCompanyID   uuid.UUID
	PassportID       *uuid.UUID
	Volume           float64
	Unit             string
	MaterialCategory string
	PricePerUnit     float64
	TotalValue       float64
	QualityTier      int
	PaymentTerms     string
	Status           DealStatus
	SellerApprovedAt *time.Time
	BuyerApprovedAt  *time.Time
	AgentReasoning   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RoleOf resolves which side of the deal the company is on.
func (d *Deal) RoleOf(companyID uuid.UUID) DealRole {
	switch companyID {
	case d.SellerCompanyID:
		return RoleSeller
	case d.BuyerCompanyID:
		return RoleBuyer
	}
	return RoleNone
}

// Counterpart returns the other party for a given actor.
func (d *Deal) Counterpart(companyID uuid.UUID) uuid.UUID {
	if companyID == d.SellerCompanyID {
		return d.BuyerCompanyID
	}
	return d.SellerCompanyID
}
