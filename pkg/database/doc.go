// Package database opens the relational store and owns its schema.
//
// PostgreSQL (lib/pq) is the production driver; SQLite (mattn/go-sqlite3) backs
// local development and the test suite. All SQL in the repository sticks to the
// dialect subset both accept: $N placeholders in ascending order, TEXT ids,
// TIMESTAMP columns written from Go in UTC, and LOWER(...) LIKE for
// case-insensitive matching.
//
// Stores accept a Querier so that a service can run a mutation and its audit
// record in one transaction via WithTx.
package database
