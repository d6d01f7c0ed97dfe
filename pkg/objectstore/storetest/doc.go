// Package storetest holds a conformance suite that every ObjectStore
// backend is run against, so the memory, badger, and postgres
// implementations are all held to the same observable behaviour.
package storetest
