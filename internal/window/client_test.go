package window

import "testing"

func TestParseOutcomePricesStringEncoded(t *testing.T) {
	prices, ok := parseOutcomePrices([]byte(`"[\"0.55\", \"0.45\"]"`))
	if !ok {
		t.Fatalf("parseOutcomePrices() ok = false, want true")
	}
	if len(prices) != 2 || prices[0] != 0.55 || prices[1] != 0.45 {
		t.Errorf("parseOutcomePrices() = %v, want [0.55 0.45]", prices)
	}
}

func TestParseOutcomePricesBareArrayOfStrings(t *testing.T) {
	prices, ok := parseOutcomePrices([]byte(`["0.6","0.4"]`))
	if !ok {
		t.Fatalf("parseOutcomePrices() ok = false, want true")
	}
	if len(prices) != 2 || prices[0] != 0.6 || prices[1] != 0.4 {
		t.Errorf("parseOutcomePrices() = %v, want [0.6 0.4]", prices)
	}
}

func TestParseOutcomePricesBareArrayOfNumbers(t *testing.T) {
	prices, ok := parseOutcomePrices([]byte(`[0.7,0.3]`))
	if !ok {
		t.Fatalf("parseOutcomePrices() ok = false, want true")
	}
	if len(prices) != 2 || prices[0] != 0.7 || prices[1] != 0.3 {
		t.Errorf("parseOutcomePrices() = %v, want [0.7 0.3]", prices)
	}
}

func TestParseOutcomePricesEmptyOrMalformed(t *testing.T) {
	if _, ok := parseOutcomePrices(nil); ok {
		t.Errorf("parseOutcomePrices(nil) ok = true, want false")
	}
	if _, ok := parseOutcomePrices([]byte(`not json`)); ok {
		t.Errorf("parseOutcomePrices(garbage) ok = true, want false")
	}
}

func TestParseEventDefaultsPriceWhenOutcomePricesMissing(t *testing.T) {
	e := gammaEvent{
		Slug: "btc-updown-5m-1708531200",
		Markets: []gammaMarket{
			{ID: "m1", Closed: false},
		},
	}
	w, ok := parseEvent(e)
	if !ok {
		t.Fatalf("parseEvent() ok = false, want true")
	}
	if w.UpPrice != 0.5 || w.DownPrice != 0.5 {
		t.Errorf("parseEvent() prices = (%v,%v), want (0.5,0.5) default", w.UpPrice, w.DownPrice)
	}
}
