// Package fingerprint computes the stable identity of one request: a dataset
// name together with a complete parameter assignment.
//
// The identity is content-addressed. The assignment is serialized to
// canonical JSON (sorted keys, NFC-normalized strings, no HTML escaping) and
// hashed with SHA-256 under a versioned domain prefix. The same logical
// assignment always yields the same Fingerprint, whatever order the
// parameters were supplied in, on any machine and in any run.
//
// Fingerprints double as journal keys and as payload file names, so they are
// lowercase hex and safe to use as a path component.
package fingerprint
