// Package nvram implements the on-media format of the persistent key/value
// store: a fixed-size header followed by a payload of packed key/value records.
//
// Wire Layout:
//
//	[Header 24 bytes][Entry]*
//
//	Entry = [key_len u32][key bytes][value_len u32][value bytes]
//
// All integers are little-endian. Entries are packed with no padding and the
// payload length is declared by the header, so the end of iteration is always
// computed from the header and never from a marker inside the stream.
//
// Key Components:
//
//   - Validate: checks magic, header checksum and that the declared payload
//     fits the storage region. It never touches the payload itself; payload
//     integrity is the job of the integrity package.
//
//   - Range / Iterator: a forward-only cursor over a validated payload with
//     Begin, End, Next and Deref. Lookup (Find) is a linear forward scan that
//     returns the first match. When a key occurs more than once the later
//     records are shadowed. Callers may rely on this.
//
//   - Error / RetCode: the error kinds shared by every layer of the module.
//     Each error names the key or header field it concerns, and errors.Is
//     matches by code against the Err* sentinels.
//
//   - MarshalEntries / MarshalImage: the inverse encoding, used when a store is
//     committed and by the provisioning tool.
package nvram
