// Package schema owns the shape of the control store: a CUE-defined
// StoreSpec (embedded default, external overrides) and the reconciler
// that locates, validates, adopts or rebuilds the store on startup.
//
// The reconciler is deliberately conservative with other people's data:
// duplicate and invalid stores are renamed aside, and only stores
// carrying this installation's ownership token are ever moved to trash/.
package schema
