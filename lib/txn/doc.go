// Package txn provides the unit of work that capped stores bind their changes to.
//
// A Txn is a registry of reversible changes. Each component that modifies state on
// behalf of a caller registers a Change with two callbacks: one that finalizes the
// change when the caller commits and one that undoes it when the caller rolls back.
//
// Ordering:
//   - Commit runs the commit callbacks in registration order
//   - Rollback runs the rollback callbacks in reverse registration order, so later
//     changes are undone before the changes they depend on
//
// A Txn finishes exactly once. Commit or Rollback on a finished Txn does nothing,
// which allows the usual pattern:
//
//	tx := txn.New()
//	defer tx.Rollback() // no-op after Commit
//
//	id, err := cappedStore.Insert(tx, payload, true)
//	if err != nil {
//	    return err
//	}
//	tx.Commit()
//
// Thread Safety:
//
//	A Txn may be shared by goroutines working for the same caller, all methods
//	are safe for concurrent use. Callbacks run without the internal lock held,
//	so they may register or inspect other transactions.
package txn
