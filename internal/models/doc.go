// Package models defines the fee ledger entities shared by the server,
// the storage layer and the payment desk.
//
// # Ownership
//
// The server is authoritative for every entity. Clients treat a fetched
// set of records as an immutable snapshot and recompute derived fields
// (remaining balance, late-fee totals) locally for display only.
//
// # Money
//
// Amounts travel as plain JSON numbers (float64). Anything that compares
// or sums amounts goes through the ledger package, which rounds to two
// decimal places first.
//
// # Lifecycle
//
// Records are never hard-deleted. Fees and payments carry IsActive and
// are soft-deleted by clearing it.
package models
