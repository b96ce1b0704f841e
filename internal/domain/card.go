package domain

// CardNumberLength is the only card number length accepted for payment.
const CardNumberLength = 16

// CardLastFour extracts the digits kept on a card-paid charge.
func CardLastFour(number string) (string, error) {
	if len(number) != CardNumberLength {
		return "", ErrInvalidCard
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return "", ErrInvalidCard
		}
	}
	return number[CardNumberLength-4:], nil
}
