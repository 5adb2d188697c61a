package groupbuilder

// Per-box minimum balance requirement charged by the ledger:
// a flat part plus a per-byte part over key and value.
const (
	boxFlatMBR    uint64 = 2500
	boxPerByteMBR uint64 = 400

	// minimum balance bump for holding one more asset
	assetMBR uint64 = 100_000
)

// BoxMBR is the exact minimum balance a box of the given key and value sizes
// pins on the app address.
func BoxMBR(keyLen, valueLen int) uint64 {
	return boxFlatMBR + boxPerByteMBR*uint64(keyLen+valueLen)
}

// fundedBoxMBR overfunds the exact MBR by the configured headroom so a ledger
// price bump between prepare and submit does not strand the group.
func (b *Builder) fundedBoxMBR(keyLen, valueLen int) uint64 {
	return BoxMBR(keyLen, valueLen) + b.cfg.BoxMBRHeadroom
}
