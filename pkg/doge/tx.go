package doge

import "errors"

var ErrShortTx = errors.New("transaction truncated")

// Tx is the part of a serialized transaction the bot checks before
// broadcasting: which outputs it spends and how many outputs it makes.
type Tx struct {
	Version  uint32
	VIn      []TxIn
	VOut     []TxOut
	LockTime uint32
	TxID     string // hex, computed from tx data
}

type TxIn struct {
	TxID     string // hex, display (reversed) order
	VOut     uint32
	Script   []byte
	Sequence uint32
}

type TxOut struct {
	Value  int64 // Koinu
	Script []byte
}

// stream reads little-endian fields and records the first overrun.
type stream struct {
	b   []byte
	p   uint64
	err error
}

func (s *stream) bytes(num uint64) []byte {
	if s.err != nil || num > uint64(len(s.b))-s.p {
		s.err = ErrShortTx
		return nil
	}
	p := s.p
	s.p += num
	return s.b[p : p+num]
}

func (s *stream) uintle(size uint64) uint64 {
	b := s.bytes(size)
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (s *stream) var_uint() uint64 {
	b := s.bytes(1)
	if b == nil {
		return 0
	}
	switch val := b[0]; {
	case val < 253:
		return uint64(val)
	case val == 253:
		return s.uintle(2)
	case val == 254:
		return s.uintle(4)
	}
	return s.uintle(8)
}

// DecodeTxHex decodes a hex-encoded legacy (non-segwit) transaction.
func DecodeTxHex(txHex string) (Tx, error) {
	raw, err := HexDecode(txHex)
	if err != nil {
		return Tx{}, err
	}
	return DecodeTx(raw)
}

func DecodeTx(raw []byte) (tx Tx, err error) {
	s := &stream{b: raw}
	tx.Version = uint32(s.uintle(4))
	nIn := s.var_uint()
	for i := uint64(0); i < nIn && s.err == nil; i++ {
		in := TxIn{}
		in.TxID = HexEncodeReversed(s.bytes(32))
		in.VOut = uint32(s.uintle(4))
		in.Script = s.bytes(s.var_uint())
		in.Sequence = uint32(s.uintle(4))
		tx.VIn = append(tx.VIn, in)
	}
	nOut := s.var_uint()
	for i := uint64(0); i < nOut && s.err == nil; i++ {
		out := TxOut{}
		out.Value = int64(s.uintle(8))
		out.Script = s.bytes(s.var_uint())
		tx.VOut = append(tx.VOut, out)
	}
	tx.LockTime = uint32(s.uintle(4))
	if s.err != nil {
		return Tx{}, s.err
	}
	if s.p != uint64(len(raw)) {
		return Tx{}, errors.New("trailing bytes after transaction")
	}
	tx.TxID = TxHashHex(raw)
	return tx, nil
}

// InputTxIDs lists the distinct txids this transaction spends from.
func (tx Tx) InputTxIDs() []string {
	seen := map[string]bool{}
	ids := []string{}
	for _, in := range tx.VIn {
		if !seen[in.TxID] {
			seen[in.TxID] = true
			ids = append(ids, in.TxID)
		}
	}
	return ids
}

// Encode serializes tx in the legacy format DecodeTx reads.
func (tx Tx) Encode() []byte {
	b := appendUintLE(nil, uint64(tx.Version), 4)
	b = appendVarUint(b, uint64(len(tx.VIn)))
	for _, in := range tx.VIn {
		id, _ := HexDecode(in.TxID)
		b = append(b, reversed(id)...)
		b = appendUintLE(b, uint64(in.VOut), 4)
		b = appendVarUint(b, uint64(len(in.Script)))
		b = append(b, in.Script...)
		b = appendUintLE(b, uint64(in.Sequence), 4)
	}
	b = appendVarUint(b, uint64(len(tx.VOut)))
	for _, out := range tx.VOut {
		b = appendUintLE(b, uint64(out.Value), 8)
		b = appendVarUint(b, uint64(len(out.Script)))
		b = append(b, out.Script...)
	}
	return appendUintLE(b, uint64(tx.LockTime), 4)
}

func appendUintLE(b []byte, v uint64, size int) []byte {
	for i := 0; i < size; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func appendVarUint(b []byte, v uint64) []byte {
	switch {
	case v < 253:
		return append(b, byte(v))
	case v <= 0xffff:
		return appendUintLE(append(b, 253), v, 2)
	case v <= 0xffffffff:
		return appendUintLE(append(b, 254), v, 4)
	}
	return appendUintLE(append(b, 255), v, 8)
}
