// Package cluster keeps multiple server processes sharing one database
// consistent.
//
// The Manager broadcasts a JSON Event on a single Redis pub/sub channel
// after local mutations and dispatches peers' events to registered
// listeners, filtered by table or prefix. Events originating from the
// local process are discarded, publishes are fire-and-forget, and a
// dropped subscription is retried with a fixed backoff until shutdown.
//
// The LockManager layers distributed mutual exclusion on the same Redis
// pool: set-if-absent acquisition with a TTL and a per-acquisition
// token, and atomic compare-then-delete / compare-then-expire scripts
// for release and renew.
//
// Everything here is best-effort. If Redis is unreachable Initialize
// returns false and the whole layer degrades to no-ops; the database
// remains the single source of truth.
package cluster
