// Package models holds the gorm rows of the settlement schema. Domain
// entities carry no gorm tags; repositories read and write these rows and
// convert at the boundary.
//
// Derived columns (direction, period_year/period_month, status,
// allocated_amount, unallocated_amount) are written here but owned by the
// settlement engines. Rows become entities through the domain's
// RestoreDocument/RestorePayment style constructors, and entities become rows
// through their State snapshots, so nothing in this package can change a
// derived value on its own.
//
// OutboxEntryModel is the exception: it mirrors shared.OutboxEntry field for
// field and converts by a plain struct conversion.
package models
