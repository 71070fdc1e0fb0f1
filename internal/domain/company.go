package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType is the closed set of trading-party kinds. Behavior keyed on it
// goes through an exhaustive table so adding a type is a compile-visible change.
type EntityType string

const (
	EntityManufacturer   EntityType = "manufacturer"
	EntityRecycler       EntityType = "recycler"
	EntityLogistics      EntityType = "logistics"
	EntityEnergyRecovery EntityType = "energy_recovery"
)

var entityTypeLabels = map[EntityType]string{
	EntityManufacturer:   "Manufacturer",
	EntityRecycler:       "Recycler",
	EntityLogistics:      "Logistics Provider",
	EntityEnergyRecovery: "Energy Recovery Facility",
}

func (t EntityType) Valid() bool {
	_, ok := entityTypeLabels[t]
	return ok
}

func (t EntityType) Label() string {
	if l, ok := entityTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Company is a trading party. EntityType is informational to the settlement
// core; authorization is by company id, never by type.
type Company struct {
	ID         uuid.UUID
	Name       string
	EntityType EntityType
	CreatedAt  time.Time
}
