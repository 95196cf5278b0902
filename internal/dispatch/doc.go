// Package dispatch runs one registered command against a session context.
//
// For each dispatch:
//   - The name is looked up in the registry (unknown names fail with
//     UnknownCommandError).
//   - Unless the command ignores archives, the archive path, or failing that
//     the dump path, is loaded into the context. An archive loaded by an
//     earlier turn is kept when the current turn names neither.
//   - A command that requires an archive fails with MissingArchiveError
//     before any target is touched.
//   - Unattached commands run directly. Attached commands run through
//     session.Attach, which connects (once) and validates first.
//
// Error handling:
//   - Load failures are ArchiveLoadError or DumpLoadError carrying the path.
//   - Attachment and validation failures are returned as-is.
//   - Anything else a command body returns is wrapped in
//     CommandExecutionError.
package dispatch
