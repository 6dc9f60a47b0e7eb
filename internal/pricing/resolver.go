package pricing

import (
	"sort"
	"time"
)

const defaultCurrency = "XAF"

// Resolve picks the advertised unit price and bulk tier for a customer
// class at a point in time. It is a pure function over the given rows.
//
// Unit price (minQuantity == 1) priority: PROMO, then WHOLESALE for B2B or
// BASE for B2C, then BASE as fallback. Bulk price is the lowest tier with
// minQuantity > 1, an advertised rate rather than a selection against an
// ordered quantity; tier selection against a real quantity is EffectiveUnitPrice.
// No active rows yields a Resolution with all nil fields, not an error.
func Resolve(prices []Price, customerType CustomerType, asOf time.Time) Resolution {
	active := make([]Price, 0, len(prices))
	for _, p := range prices {
		if p.CustomerType == customerType && p.ActiveAt(asOf) {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return Resolution{Currency: defaultCurrency}
	}

	var promo, specific, fallback *Price
	for i := range active {
		p := &active[i]
		if p.MinQuantity != 1 {
			continue
		}
		switch {
		case p.PriceType == PriceTypePromo && promo == nil:
			promo = p
		case customerType == CustomerTypeB2B && p.PriceType == PriceTypeWholesale && specific == nil:
			specific = p
		case customerType == CustomerTypeB2C && p.PriceType == PriceTypeBase && specific == nil:
			specific = p
		}
		if p.PriceType == PriceTypeBase && fallback == nil {
			fallback = p
		}
	}
	selected := promo
	if selected == nil {
		selected = specific
	}
	if selected == nil {
		selected = fallback
	}

	bulk := make([]Price, 0, len(active))
	for _, p := range active {
		if p.MinQuantity > 1 {
			bulk = append(bulk, p)
		}
	}
	sort.Slice(bulk, func(i, j int) bool { return bulk[i].MinQuantity < bulk[j].MinQuantity })

	result := Resolution{Currency: defaultCurrency}
	if selected != nil {
		amount := selected.Amount
		priceType := selected.PriceType
		result.UnitPrice = &amount
		result.PriceType = &priceType
		if selected.Currency != "" {
			result.Currency = selected.Currency
		}
	}
	if len(bulk) > 0 {
		amount := bulk[0].Amount
		minQty := bulk[0].MinQuantity
		result.BulkPrice = &amount
		result.BulkMinQuantity = &minQty
	}
	return result
}

// EffectiveUnitPrice selects the price row actually applicable to an
// ordered quantity: among active rows for the customer class with
// minQuantity <= quantity, the highest tier wins. Nil when nothing
// applies; callers decide whether that blocks checkout.
func EffectiveUnitPrice(prices []Price, customerType CustomerType, quantity int, asOf time.Time) *Price {
	var best *Price
	for i := range prices {
		p := &prices[i]
		if p.CustomerType != customerType || !p.ActiveAt(asOf) || p.MinQuantity > quantity {
			continue
		}
		if best == nil || p.MinQuantity > best.MinQuantity ||
			(p.MinQuantity == best.MinQuantity && typeRank(p.PriceType) > typeRank(best.PriceType)) {
			best = p
		}
	}
	return best
}

func typeRank(t PriceType) int {
	switch t {
	case PriceTypePromo:
		return 2
	case PriceTypeWholesale:
		return 1
	default:
		return 0
	}
}
