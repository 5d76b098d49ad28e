// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrConflict indicates a one-way state transition was
// attempted twice (resolving an already-resolved discrepancy, or
// adjusting a sale that no longer exists), while ErrValidation signals
// malformed or missing input that the caller must fix before retrying.
package repository

import "errors"

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state: resolving a discrepancy that already left the
// unresolved state, or applying an adjustment whose target sale is
// gone. Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrValidation is returned when required input is missing or outside
// the accepted enumerations. Handlers translate this into HTTP 400.
var ErrValidation = errors.New("validation failed")

// ErrDuplicateDiscrepancy is returned by DiscrepancyRepo.Insert when a
// discrepancy for the same (event, platform, external sale id, type)
// condition already exists, in any resolution state. Reconciliation
// treats it as "already recorded" and skips, which is what makes
// repeated runs idempotent even under concurrent execution.
var ErrDuplicateDiscrepancy = errors.New("duplicate discrepancy")

// ErrDiscrepancyNotFound is returned when a discrepancy id does not
// reference an existing row.
var ErrDiscrepancyNotFound = errors.New("discrepancy not found")

// ErrSaleNotFound is returned when an adjustment targets an external
// sale id with no matching ticket_sales row.
var ErrSaleNotFound = errors.New("ticket sale not found")

// ErrRunNotFound is returned when a reconciliation run id does not
// reference an existing row.
var ErrRunNotFound = errors.New("reconciliation run not found")
