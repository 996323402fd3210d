package pickup

import "fmt"

var (
	ErrMalformedPayload = fmt.Errorf("pickup code payload is malformed")
	ErrInvalidChecksum  = fmt.Errorf("pickup code checksum does not match")
	ErrExpired          = fmt.Errorf("pickup code has expired")
	ErrInvalidTimestamp = fmt.Errorf("pickup code timestamp is in the future")
	ErrOrderMismatch    = fmt.Errorf("pickup code does not match this order")
	ErrTokenMismatch    = fmt.Errorf("pickup code token does not match this order")
	ErrShopMismatch     = fmt.Errorf("pickup code was issued for a different shop")
	ErrAlreadyRedeemed  = fmt.Errorf("pickup code has already been redeemed")
)
