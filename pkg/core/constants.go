package core

import "errors"

// Errors
var (
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrDuplicateOrderID = errors.New("duplicate order id")
	ErrOrderNotFound    = errors.New("order not found")
	ErrQuantityOverflow = errors.New("quantity overflow")
	ErrPriceOverflow    = errors.New("price overflow")
)

// btreeDegree is the fan-out used for each side's price ladder
const btreeDegree = 32
