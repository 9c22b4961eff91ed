package ortypes

import (
	"encoding/json"
	"fmt"
)

// Proposal is either a Stub or a Full proposal. The set of implementations
// is closed; switch on the concrete type.
type Proposal interface {
	PropID() PropID
	isProposal()
}

// Stub is a proposal observed on chain whose content has not been uploaded.
type Stub struct {
	ID PropID `json:"id"`
}

func (s Stub) PropID() PropID { return s.ID }
func (Stub) isProposal()      {}

// Full is a proposal with validated content attached.
type Full struct {
	ID         PropID     `json:"id"`
	Content    Content    `json:"content"`
	Attachment Attachment `json:"attachment"`
}

func (f Full) PropID() PropID { return f.ID }
func (Full) isProposal()      {}

// PropType names the kind of action a proposal performs.
type PropType string

const (
	PropTypeRespectBreakout PropType = "respectBreakout"
	PropTypeRespectAccount  PropType = "respectAccount"
	PropTypeBurnRespect     PropType = "burnRespect"
	PropTypeCustomSignal    PropType = "customSignal"
	PropTypeTick            PropType = "tick"
	PropTypeCustomCall      PropType = "customCall"
)

// Known reports whether t is a recognized action kind.
func (t PropType) Known() bool {
	switch t {
	case PropTypeRespectBreakout, PropTypeRespectAccount, PropTypeBurnRespect,
		PropTypeCustomSignal, PropTypeTick, PropTypeCustomCall:
		return true
	}
	return false
}

// Attachment is off-chain metadata describing a proposal. Only the fields
// relevant to PropType are set.
type Attachment struct {
	PropType        PropType `json:"propType"`
	PropTitle       string   `json:"propTitle,omitempty"`
	PropDescription string   `json:"propDescription,omitempty"`
	Salt            string   `json:"salt,omitempty"`

	// respectBreakout
	GroupNum   uint64 `json:"groupNum,omitempty"`
	MeetingNum uint64 `json:"meetingNum,omitempty"`

	// respectAccount
	MintReason string `json:"mintReason,omitempty"`

	// burnRespect
	BurnReason string `json:"burnReason,omitempty"`

	// customSignal
	Link string `json:"link,omitempty"`
}

// PropStatus is the result of a successful content upload.
type PropStatus string

const (
	PropStored PropStatus = "ProposalStored"
	PropExists PropStatus = "ProposalExists"
)

// DecodeProposal decodes a JSON proposal, choosing Full when a content
// object is present and Stub otherwise.
func DecodeProposal(data []byte) (Proposal, error) {
	var head struct {
		ID      PropID          `json:"id"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	if len(head.Content) == 0 || string(head.Content) == "null" {
		return Stub{ID: head.ID}, nil
	}
	var full Full
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, fmt.Errorf("decode full proposal: %w", err)
	}
	return full, nil
}

// Proposals is a JSON-decodable list of mixed Stub and Full proposals.
type Proposals []Proposal

func (ps *Proposals) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Proposals, 0, len(raws))
	for i, raw := range raws {
		p, err := DecodeProposal(raw)
		if err != nil {
			return fmt.Errorf("proposal %d: %w", i, err)
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}

// NewFull derives the id of content and returns the assembled proposal.
func NewFull(content Content, attachment Attachment) (Full, error) {
	id, err := content.ID()
	if err != nil {
		return Full{}, err
	}
	return Full{ID: id, Content: content, Attachment: attachment}, nil
}
