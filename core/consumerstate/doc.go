// Package consumerstate provides the in-memory store for consumer records and
// their stored schedule slots. The SQLite backed store lives in infra/store.
package consumerstate
