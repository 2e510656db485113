// Package integrity gates untrusted blobs before they reach the decoder.
//
// A blob passes the Gate when its CRC-32 matches the stored checksum and, if a
// Verifier is configured, when its detached signature verifies. Callers must
// treat any error from Check as fatal to the current boot attempt and never
// decode a blob that failed it.
package integrity
