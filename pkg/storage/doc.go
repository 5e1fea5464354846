// Package storage opens the persistence backend selected by configuration and
// hands out the stores every warden service depends on.
//
// Two backends are supported:
//
//   - postgres: the production backend. Everything reads and writes the primary
//     unless replica_reads is set, which moves incident lists, searches and
//     counts to the configured replicas. Session
//     tokens are stored as SHA-256 digests. Audit records are appended to the
//     audit_logs table.
//   - memory: a process-local backend for tests and single-node development.
//     Nothing survives a restart.
//
// Usage:
//
//	stores, err := storage.Open(ctx, cfg.Storage, log)
//	if err != nil {
//		return err
//	}
//	defer stores.Close()
//
//	svc := workflow.NewIncidentService(stores.Incidents, ...)
//
// Open never starts background goroutines. Callers that want dead replicas
// pruned call StartReplicaHealthCheck.
package storage
