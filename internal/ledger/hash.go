package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
)

// EventHash identifies a provider delivery by its order code, result code and
// event id. encoding/json sorts map keys, so the digest does not depend on
// the field order of the incoming body. Empty fields are left out.
func EventHash(p paymentgateway.VerifiedPayload) string {
	fields := make(map[string]interface{}, 3)
	if p.OrderCode != 0 {
		fields["orderCode"] = p.OrderCode
	}
	if p.Code != "" {
		fields["code"] = p.Code
	}
	if p.EventID != "" {
		fields["id"] = p.EventID
	}

	// a map of strings and int64 always marshals
	canonical, _ := json.Marshal(fields)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
