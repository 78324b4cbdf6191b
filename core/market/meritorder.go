package market

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/dmas-energy/dmas/core/model"
)

// CurvePoint is one step of a cumulative merit-order curve.
type CurvePoint struct {
	Price  float64
	Volume float64 // cumulative volume up to and including this step
}

// ClearingCurve holds the two monotone step functions of one hourly
// auction: cumulative bid volume over descending price and cumulative ask
// volume over ascending price.
type ClearingCurve struct {
	Bids []CurvePoint
	Asks []CurvePoint
}

// ClearingResult is the outcome of one hourly auction. Traded is false
// when the curves do not cross; that is a reported result, not an error.
type ClearingResult struct {
	Date   time.Time
	Hour   int
	Price  float64
	Volume float64
	Traded bool
}

// BuildCurve partitions the hour's orders into bids and asks and computes
// the cumulative merit-order curves. Ties at equal price keep submission
// order.
func (b *OrderBook) BuildCurve(date time.Time, hour int) (ClearingCurve, error) {
	if hour < 0 || hour >= model.HoursPerDay {
		return ClearingCurve{}, fmt.Errorf("market: hour %d out of range", hour)
	}
	b.mu.Lock()
	orders := append([]model.Order(nil), b.hour(date, hour).orders...)
	b.mu.Unlock()
	return buildCurve(orders), nil
}

func buildCurve(orders []model.Order) ClearingCurve {
	var bids, asks []model.Order
	for _, o := range orders {
		switch {
		case o.Quantity == 0:
			// nothing to trade
		case o.IsBid():
			bids = append(bids, o)
		default:
			asks = append(asks, o)
		}
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	curve := ClearingCurve{}
	if len(bids) > 0 {
		vols := make([]float64, len(bids))
		for i, o := range bids {
			vols[i] = o.Quantity
		}
		floats.CumSum(vols, vols)
		for i, o := range bids {
			curve.Bids = append(curve.Bids, CurvePoint{Price: o.Price, Volume: vols[i]})
		}
	}
	if len(asks) > 0 {
		vols := make([]float64, len(asks))
		for i, o := range asks {
			vols[i] = o.Volume()
		}
		floats.CumSum(vols, vols)
		for i, o := range asks {
			curve.Asks = append(curve.Asks, CurvePoint{Price: o.Price, Volume: vols[i]})
		}
	}
	return curve
}

// Clear runs the double auction for the given hour and marks it cleared.
// Repeated calls return the stored result unchanged.
func (b *OrderBook) Clear(date time.Time, hour int) (ClearingResult, error) {
	if hour < 0 || hour >= model.HoursPerDay {
		return ClearingResult{}, fmt.Errorf("market: hour %d out of range", hour)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	hb := b.hour(date, hour)
	if hb.cleared {
		return hb.result, nil
	}
	res := clear(buildCurve(hb.orders))
	res.Date = model.Midnight(date)
	res.Hour = hour
	hb.cleared = true
	hb.result = res
	if b.log != nil {
		if res.Traded {
			b.log.Infof("cleared %s hour %d at %.2f EUR/MWh, %.1f MW", model.DateKey(date), hour, res.Price, res.Volume)
		} else {
			b.log.Infof("no trade for %s hour %d", model.DateKey(date), hour)
		}
	}
	return res, nil
}

// ClearDay clears every hour of the date in order.
func (b *OrderBook) ClearDay(date time.Time) ([]ClearingResult, error) {
	out := make([]ClearingResult, 0, model.HoursPerDay)
	for h := 0; h < model.HoursPerDay; h++ {
		res, err := b.Clear(date, h)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// clear walks both cumulative curves in ascending price order. The
// clearing price is the first price at which cumulative bid volume falls
// to or below cumulative ask volume; the volume is the minimum of the two
// curves there. When total demand exceeds total supply a sentinel step one
// unit above the highest ask absorbs the excess, so the walk still finds
// the crossing at the end of the supply curve.
func clear(curve ClearingCurve) ClearingResult {
	if len(curve.Bids) == 0 || len(curve.Asks) == 0 {
		return ClearingResult{}
	}
	maxBid := curve.Bids[0].Price
	minAsk := curve.Asks[0].Price
	if minAsk > maxBid {
		// demand curve entirely below supply
		return ClearingResult{}
	}

	totalBid := curve.Bids[len(curve.Bids)-1].Volume
	totalAsk := curve.Asks[len(curve.Asks)-1].Volume
	maxAsk := curve.Asks[len(curve.Asks)-1].Price
	candidates := make([]float64, 0, len(curve.Asks)+len(curve.Bids)+1)
	for _, p := range curve.Asks {
		candidates = append(candidates, p.Price)
	}
	for _, p := range curve.Bids {
		candidates = append(candidates, p.Price)
	}
	if totalBid > totalAsk {
		candidates = append(candidates, maxAsk+1)
	}
	sort.Float64s(candidates)

	for _, price := range candidates {
		demand := demandAt(curve.Bids, price)
		supply := supplyAt(curve.Asks, price)
		if totalBid > totalAsk && price > maxAsk {
			supply = totalBid // sentinel step absorbing the excess demand
		}
		if demand <= supply {
			volume := demand
			if totalAsk < volume {
				volume = totalAsk
			}
			if volume <= 0 {
				return ClearingResult{}
			}
			return ClearingResult{Price: price, Volume: volume, Traded: true}
		}
	}
	return ClearingResult{}
}

// demandAt returns the cumulative bid volume still willing to buy at the
// given price.
func demandAt(bids []CurvePoint, price float64) float64 {
	vol := 0.0
	for _, p := range bids {
		if p.Price < price {
			break
		}
		vol = p.Volume
	}
	return vol
}

// supplyAt returns the cumulative ask volume willing to sell at the given
// price.
func supplyAt(asks []CurvePoint, price float64) float64 {
	vol := 0.0
	for _, p := range asks {
		if p.Price > price {
			break
		}
		vol = p.Volume
	}
	return vol
}
