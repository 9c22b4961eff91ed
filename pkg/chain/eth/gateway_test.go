package eth

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := newGateway(nil, common.HexToAddress("0x5fc8a2626F6Caf00c4Af06436c12C831a2f61c66"), nil, zaptest.NewLogger(t), 0)
	require.NoError(t, err)
	return g
}

func TestABIHasExpectedEntries(t *testing.T) {
	g := newTestGateway(t)
	for _, m := range []string{"propose", "vote", "execute", "proposals", "getStage", "getVoteStatus", "voteLen"} {
		_, ok := g.abi.Methods[m]
		assert.True(t, ok, "missing method %s", m)
	}
	for _, e := range []string{"ProposalCreated", "Signal"} {
		_, ok := g.abi.Events[e]
		assert.True(t, ok, "missing event %s", e)
	}
}

func TestContentIDMatchesExecuteInput(t *testing.T) {
	g := newTestGateway(t)
	content := ortypes.Content{Address: "0x0B306BF915C4d645ff596e518fAf3F9669b97016", CData: "0xdeadbeef", Memo: "0x0102"}
	d, err := content.Decode()
	require.NoError(t, err)

	packed, err := g.abi.Methods["execute"].Inputs.Pack(message{Addr: d.Address, Cdata: d.CData, Memo: d.Memo})
	require.NoError(t, err)
	id, err := content.ID()
	require.NoError(t, err)
	assert.Equal(t, ortypes.PropIDFromHash(crypto.Keccak256Hash(packed)), id)
}

func TestDecodeProposalCreated(t *testing.T) {
	g := newTestGateway(t)
	id := ortypes.PropID("0x" + strings.Repeat("7f", 32))

	ev, err := g.decodeLog(types.Log{
		Topics:      []common.Hash{g.abi.Events["ProposalCreated"].ID, id.Hash()},
		BlockNumber: 42,
		Index:       3,
	})
	require.NoError(t, err)
	assert.Equal(t, chain.EventProposalCreated, ev.Kind)
	assert.Equal(t, id, ev.PropID)
	assert.Equal(t, uint64(42), ev.BlockNumber)
	assert.Equal(t, uint(3), ev.LogIndex)
}

func TestDecodeSignal(t *testing.T) {
	g := newTestGateway(t)
	data, err := g.abi.Events["Signal"].Inputs.NonIndexed().Pack([]byte("period 7"))
	require.NoError(t, err)

	ev, err := g.decodeLog(types.Log{
		Topics: []common.Hash{g.abi.Events["Signal"].ID, common.BigToHash(big.NewInt(1))},
		Data:   data,
	})
	require.NoError(t, err)
	assert.Equal(t, chain.EventSignal, ev.Kind)
	assert.Equal(t, chain.SignalCustom, ev.Signal.Type)
	assert.Equal(t, []byte("period 7"), ev.Signal.Data)
}

func TestDecodeUnknownTopic(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.decodeLog(types.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	assert.Error(t, err)

	_, err = g.decodeLog(types.Log{})
	assert.Error(t, err)
}

func TestDecodeProposalState(t *testing.T) {
	st, err := decodeProposalState([]interface{}{big.NewInt(1700000000), big.NewInt(10), big.NewInt(2), uint8(1)})
	require.NoError(t, err)
	assert.True(t, st.Created())
	assert.Equal(t, int64(1700000000), st.CreateTime.Unix())
	assert.Equal(t, int64(10), st.YesWeight.Int64())
	assert.Equal(t, chain.ExecExecuted, st.Status)

	st, err = decodeProposalState([]interface{}{big.NewInt(0), big.NewInt(0), big.NewInt(0), uint8(0)})
	require.NoError(t, err)
	assert.False(t, st.Created())
	assert.True(t, st.Weightless())

	_, err = decodeProposalState([]interface{}{big.NewInt(0)})
	assert.Error(t, err)
}

func TestTransactWithoutKey(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.Propose(t.Context(), ortypes.PropID("0x"+strings.Repeat("00", 32)))
	assert.ErrorContains(t, err, "no signing key")
}
