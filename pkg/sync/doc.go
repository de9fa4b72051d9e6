/*
The sync package implements the orchestration around a remote publish. It
sequences the phases of a run -- connect (with bounded retry), analyze
differences, upload, report -- for one project at a time, while letting runs
for different projects progress independently.

There are three pieces:

1) Session -- The per-project record of a run: stage, progress, per-file
   statuses, logs, retry bookkeeping. Sessions live in a Store keyed by
   project id. Reads return copies, so callers never observe a half-applied
   mutation.
2) Bridge -- A reducer that folds the transfer engine's progress events into
   the matching session. Events from all runs are consumed off a single
   queue, which preserves per-project ordering without cross-project locking.
3) Syncer -- The state machine. It owns admission control (no second run for
   a project that already has one, plus a cooldown after a failed
   connection), the retry loop with exponential backoff, cancellation, and
   the final success/failure report.

Start never returns an error. The outcome is delivered through the
completion callback and the terminal session stage.
*/
package sync
