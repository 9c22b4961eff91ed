package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const target = "0x5fc8a2626F6Caf00c4Af06436c12C831a2f61c66"

func newFull(t *testing.T, att ortypes.Attachment) ortypes.Full {
	t.Helper()
	full, err := ortypes.NewFull(ortypes.Content{Address: target, CData: "0xabcd", Memo: "0x01"}, att)
	require.NoError(t, err)
	return full
}

func TestValidateFull(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *ortypes.Full)
		wantErr string
	}{
		{name: "valid tick", mutate: func(f *ortypes.Full) {}},
		{
			name:    "malformed id",
			mutate:  func(f *ortypes.Full) { f.ID = "0x1234" },
			wantErr: "malformed proposal id",
		},
		{
			name:    "id does not match content",
			mutate:  func(f *ortypes.Full) { f.Content.Memo = "0x02" },
			wantErr: "does not match content hash",
		},
		{
			name:    "missing content",
			mutate:  func(f *ortypes.Full) { f.Content = ortypes.Content{} },
			wantErr: "content missing",
		},
		{
			name:    "unknown prop type",
			mutate:  func(f *ortypes.Full) { f.Attachment.PropType = "mintEverything" },
			wantErr: "unrecognized propType",
		},
		{
			name:    "missing prop type",
			mutate:  func(f *ortypes.Full) { f.Attachment.PropType = "" },
			wantErr: "propType missing",
		},
		{
			name: "breakout without group",
			mutate: func(f *ortypes.Full) {
				f.Attachment = ortypes.Attachment{PropType: ortypes.PropTypeRespectBreakout, MeetingNum: 3}
			},
			wantErr: "groupNum must be positive",
		},
		{
			name: "respect account without reason",
			mutate: func(f *ortypes.Full) {
				f.Attachment = ortypes.Attachment{PropType: ortypes.PropTypeRespectAccount}
			},
			wantErr: "mintReason missing",
		},
		{
			name: "burn without reason",
			mutate: func(f *ortypes.Full) {
				f.Attachment = ortypes.Attachment{PropType: ortypes.PropTypeBurnRespect}
			},
			wantErr: "burnReason missing",
		},
		{
			name: "signal with relative link",
			mutate: func(f *ortypes.Full) {
				f.Attachment = ortypes.Attachment{PropType: ortypes.PropTypeCustomSignal, Link: "/docs"}
			},
			wantErr: "not an absolute http(s) url",
		},
		{
			name: "title too long",
			mutate: func(f *ortypes.Full) {
				f.Attachment.PropTitle = strings.Repeat("x", MaxTitleLen+1)
			},
			wantErr: "propTitle longer than",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full := newFull(t, ortypes.Attachment{PropType: ortypes.PropTypeTick})
			tt.mutate(&full)

			got, err := ValidateFull(full)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, full, got)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ortypes.ErrProposalInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)

			var invalid *ortypes.ProposalInvalidError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, full, invalid.Payload)
		})
	}
}

func TestValidateFullNormalizesID(t *testing.T) {
	full := newFull(t, ortypes.Attachment{PropType: ortypes.PropTypeCustomCall})
	upper := full
	upper.ID = ortypes.PropID("0x" + strings.ToUpper(string(full.ID)[2:]))

	got, err := ValidateFull(upper)
	require.NoError(t, err)
	assert.Equal(t, full.ID, got.ID)
}

func TestValidateRaw(t *testing.T) {
	full := newFull(t, ortypes.Attachment{PropType: ortypes.PropTypeCustomSignal, Link: "https://example.org/p/1"})

	t.Run("valid", func(t *testing.T) {
		raw, err := json.Marshal(full)
		require.NoError(t, err)
		got, err := Validate(raw)
		require.NoError(t, err)
		assert.Equal(t, full, got)
	})

	t.Run("unknown field", func(t *testing.T) {
		raw := []byte(`{"id":"` + string(full.ID) + `","extra":1}`)
		_, err := Validate(raw)
		var invalid *ortypes.ProposalInvalidError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, json.RawMessage(raw), invalid.Payload)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Validate([]byte("proposal"))
		assert.ErrorIs(t, err, ortypes.ErrProposalInvalid)
	})
}
