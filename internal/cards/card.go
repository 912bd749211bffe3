// Package cards validates single-use virtual card numbers.
package cards

import "errors"

const (
	// NumberLength is the exact number of digits in a card number.
	NumberLength = 15
	// AccountPrefixLength is how many leading digits identify the customer account.
	AccountPrefixLength = 2
)

var (
	ErrInvalidLength = errors.New("cards: card number must have 15 digits")
	ErrNotNumeric    = errors.New("cards: card number must contain only digits")
)

// Card is a validated card number. A fresh card number is issued for every purchase.
type Card string

// Parse validates raw and returns it as a Card.
func Parse(raw string) (Card, error) {
	if len(raw) != NumberLength {
		return "", ErrInvalidLength
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return "", ErrNotNumeric
		}
	}
	return Card(raw), nil
}

// AccountNumber returns the account the card draws funds from.
func (c Card) AccountNumber() string {
	if len(c) < AccountPrefixLength {
		return string(c)
	}
	return string(c[:AccountPrefixLength])
}

func (c Card) String() string {
	return string(c)
}
