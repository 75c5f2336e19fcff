// Package core provides the business logic for CSV ingestion.
//
// It has no transport or database dependencies; storage is reached through
// the [UploadRepository], [RecordStore] and [BlobStore] interfaces so the
// same code runs against Postgres, object storage or in-memory fakes.
//
// # Admission
//
// [Service.Upload] validates the file, spools it to disk while computing a
// SHA-256 fingerprint, and admits it through the [Registry]. Identical bytes
// always resolve to one [Upload]; only the request that created it dispatches
// an ingestion [Job].
//
// # Ingestion
//
// The [Processor] runs one job at a time per worker of a [JobQueue]:
//
//  1. normalize the stored bytes to UTF-8 ([Normalizer])
//  2. count data rows and record total_rows
//  3. map each row onto a [Record] ([RowMapper]) and upsert it
//  4. finish as completed, listing up to ten row errors
//
// Rows that fail mapping or upsert are skipped and reported; they never fail
// the job. Unreadable sources, empty files and infrastructure errors do.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with support codes by
// [MapError]. Admission problems are returned as *[ValidationError].
package core
