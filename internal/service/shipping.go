package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FlatRateProvider — фиксированные тарифы доставки без обращения к перевозчику.
type FlatRateProvider struct {
	rates []ShippingQuote
}

func NewFlatRateProvider(rates []ShippingQuote) *FlatRateProvider {
	return &FlatRateProvider{rates: rates}
}

func (p *FlatRateProvider) Calculate(_ context.Context, destinationZip string, _ decimal.Decimal) ([]ShippingQuote, error) {
	if strings.TrimSpace(destinationZip) == "" {
		return nil, fmt.Errorf("destination zip is empty")
	}
	out := make([]ShippingQuote, len(p.rates))
	copy(out, p.rates)
	return out, nil
}

// ParseFlatRates разбирает строку вида "SEDEX:35.90:3,PAC:22.50:8" (код:цена:срок в днях).
func ParseFlatRates(s string) ([]ShippingQuote, error) {
	var rates []ShippingQuote
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("shipping rate %q: want CODE:price:days", part)
		}
		price, err := decimal.NewFromString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("shipping rate %q: %w", part, err)
		}
		days, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("shipping rate %q: %w", part, err)
		}
		code := strings.ToUpper(strings.TrimSpace(fields[0]))
		rates = append(rates, ShippingQuote{Code: code, Name: code, Price: price, ETADays: days})
	}
	return rates, nil
}
