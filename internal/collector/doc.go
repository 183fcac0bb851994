// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

/*
Package collector deletes uploaded files that no database row references.

Each Source binds a directory below the uploads root to the table column
that stores paths into it:

	avatars:users.avatar=avatars/
	attachments:messages.attachment_path

A run enumerates every regular file under each source, asks the database
which of them are referenced in batches of BatchSize parameters, and deletes
the difference. Deletions run in parallel with a bounded errgroup; a file
that cannot be deleted is logged and counted but never stops the others.
Database or enumeration failures abort the run before anything is deleted
for that source.
*/
package collector
