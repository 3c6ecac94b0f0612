package doge

import (
	"crypto/sha256"
	"encoding/hex"
)

func DoubleSha256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// TxHashHex is the txid of a serialized transaction: the double-sha256,
// byte-reversed, in hex.
func TxHashHex(tx []byte) string {
	return HexEncodeReversed(DoubleSha256(tx))
}

func HexEncode(data []byte) string {
	return hex.EncodeToString(data)
}

// HexEncodeReversed encodes data in display order (txids, block hashes).
// data is not modified.
func HexEncodeReversed(data []byte) string {
	return hex.EncodeToString(reversed(data))
}

func reversed(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[len(data)-1-i] = b
	}
	return out
}

func HexDecode(str string) ([]byte, error) {
	return hex.DecodeString(str)
}
