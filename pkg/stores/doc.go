// Package stores persists the state the runner carries between runs: the
// key/value result sink and the last applied state of every task.
//
// Two backends implement StatePersistence. FileStore keeps everything in a
// single JSON document and is the default. SQLiteStore keeps one row per
// top-level key, applies its schema with golang-migrate and additionally
// records a history of runs.
package stores
