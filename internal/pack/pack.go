// Package pack exposes read-only catalog lookups. The settlement service never
// mutates packs; catalog management is a separate system.
package pack

import (
	packmodel "github.com/frahmantamala/packpay/internal/core/datamodel/pack"
)

type Repository interface {
	GetByID(id int64) (*packmodel.Pack, error)
}
