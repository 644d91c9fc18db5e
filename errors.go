package rstmgo

import "errors"

// ErrInevitabilityDenied is returned by Txn.Inevitable when the
// transaction cannot become inevitable, i.e. whenever TryInevitable
// would report false (for example, another transaction already holds
// the inevitability token).
var ErrInevitabilityDenied = errors.New("rstmgo: inevitability denied")

// ErrCapacityExceeded is returned when a transaction's read, write, undo,
// or lock log grows past Config.SoftLogBound. The transaction is rolled
// back before this error reaches the caller, so no partial state survives.
var ErrCapacityExceeded = errors.New("rstmgo: transaction log capacity exceeded")

// errConflict is the internal signal that a barrier detected a conflict
// serious enough to abort and silently re-execute the transaction body. It
// never reaches caller code.
var errConflict = errors.New("rstmgo: conflict, retry")

// errRetryRequested is the internal signal that the transaction body
// called Txn.Retry.
var errRetryRequested = errors.New("rstmgo: retry requested")
