// Package eth implements chain.Gateway against an OREC contract on an
// EVM chain using go-ethereum.
package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	logBufferSize       = 128
)

// Config configures a Gateway.
type Config struct {
	// RPCURL must be a websocket or IPC endpoint for Subscribe to work.
	RPCURL      string
	OrecAddress string
	// PrivateKey is a hex secp256k1 key. Without it the gateway is read-only.
	PrivateKey   string
	PollInterval time.Duration
}

// message is the Go form of the contract's execute(Message) argument.
type message struct {
	Addr  common.Address
	Cdata []byte
	Memo  []byte
}

// Gateway talks to a deployed OREC contract.
type Gateway struct {
	client   *ethclient.Client
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
	auth     *bind.TransactOpts
	logger   *zap.Logger
	poll     time.Duration

	mu         sync.Mutex
	subscribed bool
}

// Dial connects to cfg.RPCURL and binds the OREC contract.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Gateway, error) {
	if !common.IsHexAddress(cfg.OrecAddress) {
		return nil, fmt.Errorf("invalid orec address %q", cfg.OrecAddress)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	var auth *bind.TransactOpts
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
		auth, err = newTransactor(key, chainID)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	g, err := newGateway(client, common.HexToAddress(cfg.OrecAddress), auth, logger, cfg.PollInterval)
	if err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("Connected to OREC contract",
		zap.String("rpc", cfg.RPCURL),
		zap.String("orec", g.address.Hex()),
		zap.Bool("readOnly", auth == nil))
	return g, nil
}

func newTransactor(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return auth, nil
}

func newGateway(client *ethclient.Client, address common.Address, auth *bind.TransactOpts, logger *zap.Logger, poll time.Duration) (*Gateway, error) {
	parsed, err := abi.JSON(strings.NewReader(orecABI))
	if err != nil {
		return nil, fmt.Errorf("parse orec abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	g := &Gateway{
		client:  client,
		address: address,
		abi:     parsed,
		auth:    auth,
		logger:  logger,
		poll:    poll,
	}
	if client != nil {
		g.contract = bind.NewBoundContract(address, parsed, client, client, client)
	} else {
		g.contract = bind.NewBoundContract(address, parsed, nil, nil, nil)
	}
	return g, nil
}

// Close releases the RPC connection.
func (g *Gateway) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func (g *Gateway) transact(ctx context.Context, method string, params ...interface{}) (chain.PendingTx, error) {
	if g.auth == nil {
		return nil, errors.New("gateway has no signing key")
	}
	opts := *g.auth
	opts.Context = ctx
	tx, err := g.contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	g.logger.Debug("Transaction broadcast",
		zap.String("method", method),
		zap.String("tx", tx.Hash().Hex()))
	return &pendingTx{gateway: g, hash: tx.Hash()}, nil
}

func (g *Gateway) Propose(ctx context.Context, id ortypes.PropID) (chain.PendingTx, error) {
	return g.transact(ctx, "propose", id.Hash())
}

func (g *Gateway) Vote(ctx context.Context, id ortypes.PropID, vote chain.VoteType, memo []byte) (chain.PendingTx, error) {
	if memo == nil {
		memo = []byte{}
	}
	return g.transact(ctx, "vote", id.Hash(), uint8(vote), memo)
}

func (g *Gateway) Execute(ctx context.Context, content ortypes.Content) (chain.PendingTx, error) {
	d, err := content.Decode()
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return g.transact(ctx, "execute", message{Addr: d.Address, Cdata: d.CData, Memo: d.Memo})
}

func (g *Gateway) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

func (g *Gateway) ProposalState(ctx context.Context, id ortypes.PropID) (chain.ProposalState, error) {
	out, err := g.call(ctx, "proposals", id.Hash())
	if err != nil {
		return chain.ProposalState{}, err
	}
	return decodeProposalState(out)
}

func decodeProposalState(out []interface{}) (chain.ProposalState, error) {
	if len(out) != 4 {
		return chain.ProposalState{}, fmt.Errorf("proposals: expected 4 outputs, got %d", len(out))
	}
	createTime, ok1 := out[0].(*big.Int)
	yes, ok2 := out[1].(*big.Int)
	no, ok3 := out[2].(*big.Int)
	status, ok4 := out[3].(uint8)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return chain.ProposalState{}, fmt.Errorf("proposals: unexpected output types %T %T %T %T", out[0], out[1], out[2], out[3])
	}
	st := chain.ProposalState{YesWeight: yes, NoWeight: no, Status: chain.ExecStatus(status)}
	if createTime.Sign() > 0 {
		st.CreateTime = time.Unix(createTime.Int64(), 0).UTC()
	}
	return st, nil
}

func (g *Gateway) uint8Call(ctx context.Context, method string, id ortypes.PropID) (uint8, error) {
	out, err := g.call(ctx, method, id.Hash())
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%s: expected 1 output, got %d", method, len(out))
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}

func (g *Gateway) Stage(ctx context.Context, id ortypes.PropID) (chain.Stage, error) {
	v, err := g.uint8Call(ctx, "getStage", id)
	return chain.Stage(v), err
}

func (g *Gateway) VoteStatus(ctx context.Context, id ortypes.PropID) (chain.VoteStatus, error) {
	v, err := g.uint8Call(ctx, "getVoteStatus", id)
	return chain.VoteStatus(v), err
}

func (g *Gateway) VoteLength(ctx context.Context) (time.Duration, error) {
	out, err := g.call(ctx, "voteLen")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("voteLen: expected 1 output, got %d", len(out))
	}
	secs, ok := out[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("voteLen: unexpected output type %T", out[0])
	}
	return time.Duration(secs) * time.Second, nil
}

// Subscribe watches ProposalCreated and Signal logs through one filter so
// their relative order is kept.
func (g *Gateway) Subscribe(ctx context.Context) (chain.Subscription, error) {
	g.mu.Lock()
	if g.subscribed {
		g.mu.Unlock()
		return nil, chain.ErrAlreadySubscribed
	}
	g.subscribed = true
	g.mu.Unlock()

	query := ethereum.FilterQuery{
		Addresses: []common.Address{g.address},
		Topics: [][]common.Hash{{
			g.abi.Events["ProposalCreated"].ID,
			g.abi.Events["Signal"].ID,
		}},
	}
	logs := make(chan types.Log, logBufferSize)
	raw, err := g.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		g.release()
		return nil, fmt.Errorf("subscribe orec logs: %w", err)
	}
	g.logger.Info("Subscribed to OREC events", zap.String("orec", g.address.Hex()))
	return newSubscription(g, raw, logs), nil
}

func (g *Gateway) release() {
	g.mu.Lock()
	g.subscribed = false
	g.mu.Unlock()
}

// decodeLog turns a contract log into a chain event.
func (g *Gateway) decodeLog(l types.Log) (chain.Event, error) {
	if len(l.Topics) == 0 {
		return chain.Event{}, errors.New("log without topics")
	}
	ev := chain.Event{BlockNumber: l.BlockNumber, LogIndex: l.Index}
	switch l.Topics[0] {
	case g.abi.Events["ProposalCreated"].ID:
		var out struct{ PropId [32]byte }
		if err := g.contract.UnpackLog(&out, "ProposalCreated", l); err != nil {
			return chain.Event{}, fmt.Errorf("unpack ProposalCreated: %w", err)
		}
		ev.Kind = chain.EventProposalCreated
		ev.PropID = ortypes.PropIDFromHash(out.PropId)
	case g.abi.Events["Signal"].ID:
		var out struct {
			SignalType uint8
			Data       []byte
		}
		if err := g.contract.UnpackLog(&out, "Signal", l); err != nil {
			return chain.Event{}, fmt.Errorf("unpack Signal: %w", err)
		}
		ev.Kind = chain.EventSignal
		ev.Signal = chain.Signal{Type: chain.SignalType(out.SignalType), Data: out.Data}
	default:
		return chain.Event{}, fmt.Errorf("unexpected topic %s", l.Topics[0].Hex())
	}
	return ev, nil
}

type pendingTx struct {
	gateway *Gateway
	hash    common.Hash
}

func (p *pendingTx) Hash() string { return p.hash.Hex() }

// Wait polls for the receipt and then for the chain head to reach the
// requested depth.
func (p *pendingTx) Wait(ctx context.Context, confirmations uint64) (*chain.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	ticker := time.NewTicker(p.gateway.poll)
	defer ticker.Stop()

	for {
		receipt, err := p.gateway.client.TransactionReceipt(ctx, p.hash)
		switch {
		case err == nil:
			head, headErr := p.gateway.client.BlockNumber(ctx)
			if headErr != nil {
				return nil, fmt.Errorf("fetch head: %w", headErr)
			}
			mined := receipt.BlockNumber.Uint64()
			if head >= mined+confirmations-1 {
				return &chain.Receipt{
					TxHash:      p.hash.Hex(),
					BlockNumber: mined,
					Success:     receipt.Status == types.ReceiptStatusSuccessful,
				}, nil
			}
		case errors.Is(err, ethereum.NotFound):
		default:
			return nil, fmt.Errorf("fetch receipt %s: %w", p.hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
