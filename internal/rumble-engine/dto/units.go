package dto

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Lamports e unidades de ICHOR têm 9 casas decimais.
const Decimals = 9

var (
	ErrInvalidDecimal = errors.New("invalid decimal amount")
	ErrTooPrecise     = errors.New("amount has more than 9 decimal places")
	ErrOutOfRange     = errors.New("amount out of range")
)

var maxUnits = decimal.NewFromInt(math.MaxInt64)

// Display formata unidades mínimas como decimal (ex.: 1500000000 -> "1.5").
func Display(units int64) string {
	return decimal.New(units, -Decimals).String()
}

// ParseUnits converte "1.5" em 1500000000. Rejeita frações abaixo da
// unidade mínima em vez de arredondar.
func ParseUnits(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidDecimal
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if scaled.GreaterThan(maxUnits) || scaled.LessThan(maxUnits.Neg()) {
		return 0, ErrOutOfRange
	}
	return scaled.IntPart(), nil
}
