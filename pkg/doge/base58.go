package doge

import (
	"fmt"

	"github.com/mr-tron/base58"
)

type Address string

type ChainParams struct {
	Name                 string
	p2pkh_address_prefix byte
	p2sh_address_prefix  byte
}

var MainChain = ChainParams{
	Name:                 "mainnet",
	p2pkh_address_prefix: 0x1e, // D
	p2sh_address_prefix:  0x16, // 9 or A
}

var TestChain = ChainParams{
	Name:                 "testnet",
	p2pkh_address_prefix: 0x71, // n
	p2sh_address_prefix:  0xc4, // 2
}

var RegTestChain = ChainParams{
	Name:                 "regtest",
	p2pkh_address_prefix: 0x6f,
	p2sh_address_prefix:  0xc4,
}

// ChainByName maps a network name from config to its params.
func ChainByName(name string) (*ChainParams, error) {
	switch name {
	case "", "mainnet", "main":
		return &MainChain, nil
	case "testnet", "test":
		return &TestChain, nil
	case "regtest":
		return &RegTestChain, nil
	}
	return nil, fmt.Errorf("unknown network: %s", name)
}

func Base58Decode(str string) ([]byte, error) {
	return base58.FastBase58Decoding(str)
}

func Base58DecodeCheck(str string) ([]byte, error) {
	data, err := Base58Decode(str)
	if err != nil {
		return nil, err
	}
	err = Base58VerifyChecksum(data, str)
	if err != nil {
		return nil, err
	}
	return data[0 : len(data)-4], nil
}

func Base58VerifyChecksum(bytes []byte, str string) error {
	// https://en.bitcoin.it/Base58Check_encoding
	if len(bytes) < 5 {
		return fmt.Errorf("Base58Check: too short")
	}
	split := len(bytes) - 4
	payload := bytes[0:split]
	check := bytes[split:]
	sum := DoubleSha256(payload)
	if check[0] != sum[0] || check[1] != sum[1] || check[2] != sum[2] || check[3] != sum[3] {
		return fmt.Errorf("Base58Check: wrong checksum")
	}
	return nil
}

// ValidateP2PKH checks the checksum, length and version byte of a
// pay-to-pubkey-hash address.
func ValidateP2PKH(address Address, chain *ChainParams) bool {
	key, err := Base58DecodeCheck(string(address))
	if err != nil {
		return false
	}
	return len(key) == 21 && key[0] == chain.p2pkh_address_prefix
}
