package orclient

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/validation"
	"github.com/google/uuid"
)

// Calls a proposal can make: mints and burns on the respect token and
// signals emitted by the OREC contract itself.
const callsABI = `[
  {"type":"function","name":"mintRespectGroup","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"mintRequests","type":"tuple[]","components":[{"name":"id","type":"uint256"},{"name":"value","type":"uint64"}]},
    {"name":"data","type":"bytes"}]},
  {"type":"function","name":"mintRespect","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"request","type":"tuple","components":[{"name":"id","type":"uint256"},{"name":"value","type":"uint64"}]},
    {"name":"data","type":"bytes"}]},
  {"type":"function","name":"burnRespect","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"tokenId","type":"uint256"},{"name":"data","type":"bytes"}]},
  {"type":"function","name":"signal","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"signalType","type":"uint8"},{"name":"data","type":"bytes"}]}
]`

// Mint types packed into respect token ids.
const (
	MintTypeRespectGame    uint8 = 0
	MintTypeRespectAccount uint8 = 1
)

// BreakoutRewards is the respect minted per rank, best rank first.
var BreakoutRewards = []uint64{55, 34, 21, 13, 8, 5}

const minBreakoutRankings = 3

// mintRequest is the Go form of the respect token's MintRequest tuple.
type mintRequest struct {
	Id    *big.Int
	Value uint64
}

// TokenID packs a respect token id: owner in the low 160 bits, the period
// in the next 64 and the mint type above them.
func TokenID(owner common.Address, periodNum uint64, mintType uint8) *big.Int {
	id := new(big.Int).SetUint64(uint64(mintType))
	id.Lsh(id, 64)
	id.Or(id, new(big.Int).SetUint64(periodNum))
	id.Lsh(id, 160)
	return id.Or(id, new(big.Int).SetBytes(owner.Bytes()))
}

type RespectBreakoutRequest struct {
	GroupNum   uint64
	MeetingNum uint64
	// Rankings lists member addresses, best rank first.
	Rankings []string
}

type RespectAccountRequest struct {
	Account    string
	Value      uint64
	MeetingNum uint64
	MintType   uint8
	Title      string
	Reason     string
}

type BurnRespectRequest struct {
	TokenID *big.Int
	Reason  string
}

type CustomSignalRequest struct {
	Data        []byte
	Link        string
	Title       string
	Description string
}

type TickRequest struct {
	Data []byte
	Link string
}

type CustomCallRequest struct {
	Address     string
	CData       string
	Title       string
	Description string
}

// Builder turns requests into validated Full proposals. Each proposal's
// memo is a fresh random salt so identical calls get distinct ids.
type Builder struct {
	orec    common.Address
	respect common.Address
	abi     abi.ABI
	newSalt func() uuid.UUID
}

func NewBuilder(orecAddress, respectAddress string) (*Builder, error) {
	if !common.IsHexAddress(orecAddress) {
		return nil, fmt.Errorf("invalid orec address %q", orecAddress)
	}
	if !common.IsHexAddress(respectAddress) {
		return nil, fmt.Errorf("invalid respect address %q", respectAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(callsABI))
	if err != nil {
		return nil, err
	}
	return &Builder{
		orec:    common.HexToAddress(orecAddress),
		respect: common.HexToAddress(respectAddress),
		abi:     parsed,
		newSalt: uuid.New,
	}, nil
}

func (b *Builder) RespectBreakout(req RespectBreakoutRequest) (ortypes.Full, error) {
	if n := len(req.Rankings); n < minBreakoutRankings || n > len(BreakoutRewards) {
		return ortypes.Full{}, fmt.Errorf("breakout needs %d to %d ranked members, got %d",
			minBreakoutRankings, len(BreakoutRewards), n)
	}
	requests := make([]mintRequest, 0, len(req.Rankings))
	seen := make(map[common.Address]bool, len(req.Rankings))
	for i, member := range req.Rankings {
		if !common.IsHexAddress(member) {
			return ortypes.Full{}, fmt.Errorf("rank %d: invalid address %q", i+1, member)
		}
		addr := common.HexToAddress(member)
		if seen[addr] {
			return ortypes.Full{}, fmt.Errorf("rank %d: %s ranked twice", i+1, addr)
		}
		seen[addr] = true
		requests = append(requests, mintRequest{
			Id:    TokenID(addr, req.MeetingNum, MintTypeRespectGame),
			Value: BreakoutRewards[i],
		})
	}
	cdata, err := b.abi.Pack("mintRespectGroup", requests, []byte{})
	if err != nil {
		return ortypes.Full{}, fmt.Errorf("encode mintRespectGroup: %w", err)
	}
	return b.build(b.respect, cdata, ortypes.Attachment{
		PropType:   ortypes.PropTypeRespectBreakout,
		GroupNum:   req.GroupNum,
		MeetingNum: req.MeetingNum,
	})
}

func (b *Builder) RespectAccount(req RespectAccountRequest) (ortypes.Full, error) {
	if !common.IsHexAddress(req.Account) {
		return ortypes.Full{}, fmt.Errorf("invalid account %q", req.Account)
	}
	if req.Value == 0 {
		return ortypes.Full{}, errors.New("respect value must be positive")
	}
	mint := mintRequest{
		Id:    TokenID(common.HexToAddress(req.Account), req.MeetingNum, req.MintType),
		Value: req.Value,
	}
	cdata, err := b.abi.Pack("mintRespect", mint, []byte{})
	if err != nil {
		return ortypes.Full{}, fmt.Errorf("encode mintRespect: %w", err)
	}
	return b.build(b.respect, cdata, ortypes.Attachment{
		PropType:   ortypes.PropTypeRespectAccount,
		PropTitle:  req.Title,
		MintReason: req.Reason,
	})
}

func (b *Builder) BurnRespect(req BurnRespectRequest) (ortypes.Full, error) {
	if req.TokenID == nil || req.TokenID.Sign() <= 0 {
		return ortypes.Full{}, errors.New("token id is required")
	}
	cdata, err := b.abi.Pack("burnRespect", req.TokenID, []byte{})
	if err != nil {
		return ortypes.Full{}, fmt.Errorf("encode burnRespect: %w", err)
	}
	return b.build(b.respect, cdata, ortypes.Attachment{
		PropType:   ortypes.PropTypeBurnRespect,
		BurnReason: req.Reason,
	})
}

func (b *Builder) CustomSignal(req CustomSignalRequest) (ortypes.Full, error) {
	cdata, err := b.signal(chain.SignalCustom, req.Data)
	if err != nil {
		return ortypes.Full{}, err
	}
	return b.build(b.orec, cdata, ortypes.Attachment{
		PropType:        ortypes.PropTypeCustomSignal,
		PropTitle:       req.Title,
		PropDescription: req.Description,
		Link:            req.Link,
	})
}

// Tick builds the proposal that advances the period when executed.
func (b *Builder) Tick(req TickRequest) (ortypes.Full, error) {
	cdata, err := b.signal(chain.SignalTick, req.Data)
	if err != nil {
		return ortypes.Full{}, err
	}
	return b.build(b.orec, cdata, ortypes.Attachment{
		PropType: ortypes.PropTypeTick,
		Link:     req.Link,
	})
}

func (b *Builder) CustomCall(req CustomCallRequest) (ortypes.Full, error) {
	if !common.IsHexAddress(req.Address) {
		return ortypes.Full{}, fmt.Errorf("invalid call target %q", req.Address)
	}
	cdata, err := hexutil.Decode(req.CData)
	if err != nil {
		return ortypes.Full{}, fmt.Errorf("invalid cdata: %w", err)
	}
	return b.build(common.HexToAddress(req.Address), cdata, ortypes.Attachment{
		PropType:        ortypes.PropTypeCustomCall,
		PropTitle:       req.Title,
		PropDescription: req.Description,
	})
}

func (b *Builder) signal(st chain.SignalType, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	cdata, err := b.abi.Pack("signal", uint8(st), data)
	if err != nil {
		return nil, fmt.Errorf("encode signal: %w", err)
	}
	return cdata, nil
}

func (b *Builder) build(target common.Address, cdata []byte, attachment ortypes.Attachment) (ortypes.Full, error) {
	salt := b.newSalt()
	attachment.Salt = salt.String()
	content := ortypes.Decoded{Address: target, CData: cdata, Memo: salt[:]}.Encode()
	full, err := ortypes.NewFull(content, attachment)
	if err != nil {
		return ortypes.Full{}, err
	}
	return validation.ValidateFull(full)
}
