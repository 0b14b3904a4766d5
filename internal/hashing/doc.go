// Package hashing computes the content digests romimport uses to identify and
// deduplicate ROMs.
//
// A FileProvider hashes a file once, feeding MD5, CRC32 and SHA1 from a single
// read, and can skip a leading copier or emulator header so the digest matches
// the headerless dumps listed in DAT files. HeaderOffset sniffs the common
// header formats. Provider is an interface so identification tests can supply
// digests that do not depend on file bytes.
package hashing
