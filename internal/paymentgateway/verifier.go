package paymentgateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
)

var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrMissingSignature = errors.New("webhook payload has no signature")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
)

// Verifier authenticates a raw webhook body and extracts the fields the
// lifecycle needs.
type Verifier interface {
	Verify(raw []byte) (*paymentgateway.VerifiedPayload, error)
}

// ChecksumVerifier checks the provider's HMAC-SHA256 signature over the
// sorted `data` object.
type ChecksumVerifier struct {
	checksumKey []byte
}

func NewChecksumVerifier(checksumKey string) *ChecksumVerifier {
	return &ChecksumVerifier{checksumKey: []byte(checksumKey)}
}

type webhookEnvelope struct {
	Code      string                     `json:"code"`
	Desc      string                     `json:"desc"`
	Data      map[string]json.RawMessage `json:"data"`
	Signature string                     `json:"signature"`
}

func (v *ChecksumVerifier) Verify(raw []byte) (*paymentgateway.VerifiedPayload, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Signature == "" {
		return nil, ErrMissingSignature
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrMalformedPayload)
	}

	signed, err := SignatureData(env.Data)
	if err != nil {
		return nil, err
	}
	expected := Sign(v.checksumKey, signed)
	given, err := hex.DecodeString(strings.ToLower(env.Signature))
	if err != nil || !hmac.Equal(given, expected) {
		return nil, ErrInvalidSignature
	}

	return extractPayload(env)
}

// SignatureData renders fields as `k1=v1&k2=v2` in key order, the input the
// provider signs.
func SignatureData(fields map[string]json.RawMessage) (string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value, err := signatureValue(fields[k])
		if err != nil {
			return "", fmt.Errorf("%w: field %s: %v", ErrMalformedPayload, k, err)
		}
		parts = append(parts, k+"="+value)
	}
	return strings.Join(parts, "&"), nil
}

func signatureValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		// numbers and booleans keep their literal text
		return string(trimmed), nil
	}
}

// Sign returns the HMAC-SHA256 of data under key.
func Sign(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func extractPayload(env webhookEnvelope) (*paymentgateway.VerifiedPayload, error) {
	p := &paymentgateway.VerifiedPayload{
		Code:      stringField(env.Data, "code"),
		Status:    stringField(env.Data, "status"),
		Reference: stringField(env.Data, "reference"),
	}
	if p.Code == "" {
		p.Code = env.Code
	}
	p.EventID = stringField(env.Data, "id")
	if p.EventID == "" {
		p.EventID = p.Reference
	}

	var err error
	if p.OrderCode, err = intField(env.Data, "orderCode"); err != nil {
		return nil, fmt.Errorf("%w: orderCode: %v", ErrMalformedPayload, err)
	}
	if p.Amount, err = intField(env.Data, "amount"); err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	s, err := signatureValue(raw)
	if err != nil {
		return ""
	}
	return s
}

// intField accepts a JSON number or a numeric string. Absent means 0.
func intField(fields map[string]json.RawMessage, key string) (int64, error) {
	s := stringField(fields, key)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
