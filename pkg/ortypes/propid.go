package ortypes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PropID identifies a proposal on the OREC contract. It is the lowercase
// 0x-prefixed hex form of a 32-byte hash.
type PropID string

var propIDPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// ParsePropID normalizes s to lowercase and checks that it is a well-formed PropID.
func ParsePropID(s string) (PropID, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if !propIDPattern.MatchString(norm) {
		return "", fmt.Errorf("malformed proposal id %q: expected 0x followed by 64 hex digits", s)
	}
	return PropID(norm), nil
}

// PropIDFromHash converts a chain hash into a PropID.
func PropIDFromHash(h common.Hash) PropID {
	return PropID(h.Hex())
}

// Valid reports whether id is in canonical form.
func (id PropID) Valid() bool {
	return propIDPattern.MatchString(string(id))
}

// Hash returns the id as a 32-byte chain hash.
func (id PropID) Hash() common.Hash {
	return common.HexToHash(string(id))
}

func (id PropID) String() string {
	return string(id)
}
