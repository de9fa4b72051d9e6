/*
The transfer package implements the engine that moves build output to the
remote host. It exposes three operations to the sync orchestrator:

1) TestConnection -- Dials the remote host with the project's credentials and
   reports whether a session can be established.
2) GetDiff -- Compares the local build directory against the remote directory
   and classifies every file as added, modified, removed, or unchanged. The
   comparison is size-based; hidden files and files inside hidden directories
   are ignored on both sides.
3) Sync -- Uploads the added and modified files over a pool of parallel
   connections, streaming progress events tagged with the project id. The
   upload stops early if too many files fail, and honors cancellation between
   files: a file that is already in flight is allowed to finish.

Both FTP and SFTP remotes are supported. Each upload worker opens its own
connection, so the engine never shares a session between goroutines.
*/
package transfer
