package util

import "encoding/hex"

// EncodeHex and DecodeHex exist only to give the round-trip property test
// (spec.md §8: hex::decode(hex::encode(b)) = b) a named pair of functions
// to call, mirroring original_source/src/utils/hex.rs's thin wrapper.
func EncodeHex(b []byte) string { return hex.EncodeToString(b) }

func DecodeHex(s string) ([]byte, error) { return hex.DecodeString(s) }
