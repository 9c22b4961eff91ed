// Package validation checks proposal payloads before they reach the store.
// Nothing here mutates state; a payload either comes back as a typed Full
// proposal or is rejected with *ortypes.ProposalInvalidError.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fractalrespect/orecx/pkg/ortypes"
)

const (
	MaxTitleLen       = 256
	MaxDescriptionLen = 16 * 1024
)

// Validate strictly decodes raw as a Full proposal and validates it.
// Unknown fields are rejected.
func Validate(raw []byte) (ortypes.Full, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var candidate ortypes.Full
	if err := dec.Decode(&candidate); err != nil {
		return ortypes.Full{}, &ortypes.ProposalInvalidError{
			Payload: json.RawMessage(raw),
			Cause:   fmt.Errorf("decode: %w", err),
		}
	}
	full, err := check(candidate)
	if err != nil {
		return ortypes.Full{}, &ortypes.ProposalInvalidError{Payload: json.RawMessage(raw), Cause: err}
	}
	return full, nil
}

// ValidateFull validates an already decoded candidate. The returned
// proposal has its id in canonical form.
func ValidateFull(candidate ortypes.Full) (ortypes.Full, error) {
	full, err := check(candidate)
	if err != nil {
		return ortypes.Full{}, &ortypes.ProposalInvalidError{Payload: candidate, Cause: err}
	}
	return full, nil
}

func check(c ortypes.Full) (ortypes.Full, error) {
	id, err := ortypes.ParsePropID(string(c.ID))
	if err != nil {
		return ortypes.Full{}, err
	}
	if c.Content == (ortypes.Content{}) {
		return ortypes.Full{}, errors.New("content missing")
	}
	decoded, err := c.Content.Decode()
	if err != nil {
		return ortypes.Full{}, fmt.Errorf("content: %w", err)
	}
	if decoded.Address == (common.Address{}) {
		return ortypes.Full{}, errors.New("content: zero target address")
	}
	derived, err := decoded.ID()
	if err != nil {
		return ortypes.Full{}, err
	}
	if derived != id {
		return ortypes.Full{}, fmt.Errorf("id %s does not match content hash %s", id, derived)
	}
	if err := checkAttachment(c.Attachment); err != nil {
		return ortypes.Full{}, fmt.Errorf("attachment: %w", err)
	}

	c.ID = id
	return c, nil
}

func checkAttachment(a ortypes.Attachment) error {
	if a.PropType == "" {
		return errors.New("propType missing")
	}
	if !a.PropType.Known() {
		return fmt.Errorf("unrecognized propType %q", a.PropType)
	}

	var errs []error
	if utf8.RuneCountInString(a.PropTitle) > MaxTitleLen {
		errs = append(errs, fmt.Errorf("propTitle longer than %d characters", MaxTitleLen))
	}
	if len(a.PropDescription) > MaxDescriptionLen {
		errs = append(errs, fmt.Errorf("propDescription larger than %d bytes", MaxDescriptionLen))
	}

	switch a.PropType {
	case ortypes.PropTypeRespectBreakout:
		if a.GroupNum == 0 {
			errs = append(errs, errors.New("groupNum must be positive"))
		}
		if a.MeetingNum == 0 {
			errs = append(errs, errors.New("meetingNum must be positive"))
		}
	case ortypes.PropTypeRespectAccount:
		if a.MintReason == "" {
			errs = append(errs, errors.New("mintReason missing"))
		}
	case ortypes.PropTypeBurnRespect:
		if a.BurnReason == "" {
			errs = append(errs, errors.New("burnReason missing"))
		}
	case ortypes.PropTypeCustomSignal:
		if a.Link != "" {
			if err := checkLink(a.Link); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func checkLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("link %q is not an absolute http(s) url", link)
	}
	return nil
}
