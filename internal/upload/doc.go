// Package upload moves attachment content into a remote file store.
//
// Files at or below the single-shot threshold are written with one atomic
// PUT. Larger files go through a resumable session: the store hands out a
// session URL, the uploader transfers fixed-size chunks aligned to the
// store's granularity, and after every chunk it adopts the offset the store
// acknowledged. The remote's view of progress is authoritative, so a lost
// acknowledgment or a session that advanced server-side never causes
// conflicting writes.
//
// Transient failures are retried with exponential backoff; rate-limit
// responses are retried after exactly the server-supplied delay. When
// retries are exhausted mid-session the session status is queried once
// before declaring failure, since the session may have advanced past the
// last acknowledgment the client saw.
package upload
