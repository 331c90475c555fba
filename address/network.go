package address

// Network holds the address encoding parameters of a bitcoin network.
type Network struct {
	Name string

	// Base58Check version bytes.
	PubKeyHashID byte
	ScriptHashID byte
	PrivateKeyID byte

	// Bech32HRP is the human readable part of segwit addresses.
	Bech32HRP string
}

var MainNet = Network{
	Name:         "mainnet",
	PubKeyHashID: 0x00,
	ScriptHashID: 0x05,
	PrivateKeyID: 0x80,
	Bech32HRP:    "bc",
}

var TestNet3 = Network{
	Name:         "testnet3",
	PubKeyHashID: 0x6f,
	ScriptHashID: 0xc4,
	PrivateKeyID: 0xef,
	Bech32HRP:    "tb",
}

var RegTest = Network{
	Name:         "regtest",
	PubKeyHashID: 0x6f,
	ScriptHashID: 0xc4,
	PrivateKeyID: 0xef,
	Bech32HRP:    "bcrt",
}
