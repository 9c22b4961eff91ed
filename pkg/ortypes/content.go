package ortypes

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Content is the call a proposal executes once passed: a target address,
// its calldata and a memo. Byte fields are 0x-prefixed hex.
type Content struct {
	Address string `json:"address"`
	CData   string `json:"cdata"`
	Memo    string `json:"memo"`
}

var contentArgs = mustContentArgs()

// message mirrors the contract's Message struct, the argument of execute.
type message struct {
	Addr  common.Address
	Cdata []byte
	Memo  []byte
}

// mustContentArgs encodes content as one Message tuple, like the
// contract's abi.encode(message).
func mustContentArgs() abi.Arguments {
	messageT, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "addr", Type: "address"},
		{Name: "cdata", Type: "bytes"},
		{Name: "memo", Type: "bytes"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "message", Type: messageT}}
}

// Decoded is Content with its hex fields decoded.
type Decoded struct {
	Address common.Address
	CData   []byte
	Memo    []byte
}

// Decode parses the hex fields of c.
func (c Content) Decode() (Decoded, error) {
	if !common.IsHexAddress(c.Address) {
		return Decoded{}, fmt.Errorf("address %q is not a hex address", c.Address)
	}
	cdata, err := decodeHex(c.CData)
	if err != nil {
		return Decoded{}, fmt.Errorf("cdata: %w", err)
	}
	memo, err := decodeHex(c.Memo)
	if err != nil {
		return Decoded{}, fmt.Errorf("memo: %w", err)
	}
	return Decoded{Address: common.HexToAddress(c.Address), CData: cdata, Memo: memo}, nil
}

// ID derives the proposal id of c as keccak256(abi.encode(message)).
func (c Content) ID() (PropID, error) {
	d, err := c.Decode()
	if err != nil {
		return "", err
	}
	return d.ID()
}

// ID derives the proposal id of the decoded content.
func (d Decoded) ID() (PropID, error) {
	packed, err := contentArgs.Pack(message{Addr: d.Address, Cdata: d.CData, Memo: d.Memo})
	if err != nil {
		return "", fmt.Errorf("abi encode content: %w", err)
	}
	return PropIDFromHash(crypto.Keccak256Hash(packed)), nil
}

// Encode converts decoded content back to its wire form.
func (d Decoded) Encode() Content {
	return Content{
		Address: d.Address.Hex(),
		CData:   hexutil.Encode(d.CData),
		Memo:    hexutil.Encode(d.Memo),
	}
}

// decodeHex accepts "0x" as empty bytes, which hexutil.Decode also does.
func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("missing hex value")
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", s, err)
	}
	return b, nil
}
