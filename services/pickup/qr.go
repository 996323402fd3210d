package pickup

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payload is the scannable proof that authorizes handing an order over
// without re-authenticating the student. The checksum is a tamper
// detector, not a secrecy mechanism: everything here is visible to
// whoever scans the code.
type Payload struct {
	OrderID     string `json:"orderId"`
	PickupToken string `json:"pickupToken"`
	ShopID      int64  `json:"shopId"`
	Timestamp   int64  `json:"timestamp"`
	Checksum    string `json:"checksum"`
}

// minimalPayload carries identical semantics with single-letter keys to
// keep the QR module count down.
type minimalPayload struct {
	O string `json:"o"`
	P string `json:"p"`
	S int64  `json:"s"`
	T int64  `json:"t"`
	C string `json:"c"`
}

// Expected is the order-side triple the scanned payload must bind to.
type Expected struct {
	OrderID     uuid.UUID
	PickupToken string
	ShopID      int64
}

const futureSkewTolerance = 5 * time.Minute

type QRService struct {
	secret string
	maxAge time.Duration
	now    func() time.Time
}

func NewQRService(secret string, maxAge time.Duration) *QRService {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &QRService{
		secret: secret,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// checksum is the first 8 hex chars of SHA-256 over the payload fields and
// the server secret, in a fixed field order.
func (s *QRService) checksum(orderID, pickupToken string, shopID, timestamp int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d%d%s", orderID, pickupToken, shopID, timestamp, s.secret)))
	return hex.EncodeToString(sum[:])[:8]
}

// Generate stamps a payload for the given order at the current time.
func (s *QRService) Generate(orderID uuid.UUID, pickupToken string, shopID int64) Payload {
	ts := s.now().Unix()
	return Payload{
		OrderID:     orderID.String(),
		PickupToken: pickupToken,
		ShopID:      shopID,
		Timestamp:   ts,
		Checksum:    s.checksum(orderID.String(), pickupToken, shopID, ts),
	}
}

// Encode serializes the payload for embedding in a scannable code.
func (s *QRService) Encode(p Payload) string {
	data, _ := json.Marshal(p)
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeMinimal produces the single-letter-key variant; it decodes to the
// same semantic record.
func (s *QRService) EncodeMinimal(p Payload) string {
	data, _ := json.Marshal(minimalPayload{
		O: p.OrderID,
		P: p.PickupToken,
		S: p.ShopID,
		T: p.Timestamp,
		C: p.Checksum,
	})
	return base64.StdEncoding.EncodeToString(data)
}

// Decode accepts either wire variant.
func (s *QRService) Decode(encoded string) (Payload, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, ErrMalformedPayload
	}

	var full Payload
	if err := json.Unmarshal(data, &full); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	if full.OrderID != "" || full.Checksum != "" {
		return full, nil
	}

	var min minimalPayload
	if err := json.Unmarshal(data, &min); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	if min.O == "" && min.C == "" {
		return Payload{}, ErrMalformedPayload
	}
	return Payload{
		OrderID:     min.O,
		PickupToken: min.P,
		ShopID:      min.S,
		Timestamp:   min.T,
		Checksum:    min.C,
	}, nil
}

// Verify applies the checks in order, short-circuiting on the first
// failure: authenticity, freshness, clock skew, then binding to the order
// being redeemed.
func (s *QRService) Verify(p Payload, expected Expected) error {
	if s.checksum(p.OrderID, p.PickupToken, p.ShopID, p.Timestamp) != p.Checksum {
		return ErrInvalidChecksum
	}

	issued := time.Unix(p.Timestamp, 0)
	now := s.now()
	if now.Sub(issued) > s.maxAge {
		return ErrExpired
	}
	if issued.Sub(now) > futureSkewTolerance {
		return ErrInvalidTimestamp
	}

	if p.OrderID != expected.OrderID.String() {
		return ErrOrderMismatch
	}
	if p.PickupToken != expected.PickupToken {
		return ErrTokenMismatch
	}
	if p.ShopID != expected.ShopID {
		return ErrShopMismatch
	}
	return nil
}
