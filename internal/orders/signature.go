package orders

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and checks gateway payment signatures: lowercase hex
// HMAC-SHA256 over "orderID|paymentID".
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer for the gateway secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the expected signature.
func (s *Signer) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the expected value in constant time.
func (s *Signer) Verify(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if s == nil || len(s.secret) == 0 || signature == "" {
		return false
	}
	expected := s.Sign(gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
