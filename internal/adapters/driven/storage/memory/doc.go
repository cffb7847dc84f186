// Package memory provides in-memory implementations of the storage ports.
//
// Nothing survives the process. The stores back dry runs (store.driver =
// "memory") and tests that need real store semantics without a database.
package memory
