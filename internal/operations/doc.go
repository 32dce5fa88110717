// Package operations runs budget analyses as asynchronous jobs.
//
// A job moves from processing to completed or failed, never back. Its stages
// run strictly in order:
//
//   - validate: schema check; a violation fails the job unless
//     standardization is enabled
//   - standardize: backfill missing values (only after a failed validation)
//   - project: next-period projections
//   - assess: risk score and tax slabs, computed concurrently
//   - visualize: PNG charts in the job's plots directory
//   - compile: PDF report and, optionally, the XLSX workbook
//
// Core Components:
//
// Manager: runs the stages of a Registry over a PipelineState, tracing each
// stage and reporting progress through the StatusBroadcaster.
//
// JobQueue: accepts uploads, gives every job its own workspace directory and
// processes jobs on a fixed pool of workers. A panic inside a stage fails the
// job instead of the process.
//
// JobStore: persists job records. MemoryJobStore is the default;
// SQLiteJobStore keeps jobs across restarts and fails any job a restart
// interrupted.
//
// Sweeper: purges terminal jobs and their workspaces after the retention
// period.
//
// Example usage:
//
//	registry, _ := operations.NewPipelineRegistry(logger, &operations.StageOptions{Config: cfg})
//	manager := operations.NewManager(registry, broadcaster, tracer, logger)
//	queue := operations.NewJobQueue(cfg, store, manager, workspaces, logger)
//	queue.Start(ctx)
//	job, err := queue.Submit(ctx, uploaded)
package operations
