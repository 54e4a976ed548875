package listing

import (
	"math"
	"strings"

	"github.com/npezzotti/go-agritour/internal/types"
)

// AllOption is the option label clients send for an unset text filter.
const AllOption = "All"

// Filter is the conjunction of four independent predicates. An empty or
// "All" Type or Location matches every farm.
type Filter struct {
	Type      string  `json:"type"`
	Location  string  `json:"location"`
	MinPrice  float64 `json:"min_price"`
	MaxPrice  float64 `json:"max_price"`
	MinRating float64 `json:"min_rating"`
}

func NewFilter() Filter {
	return Filter{MaxPrice: math.MaxFloat64}
}

func unset(s string) bool {
	return s == "" || strings.EqualFold(s, AllOption)
}

func (f Filter) matchType(farm types.Farm) bool {
	return unset(f.Type) || strings.EqualFold(farm.Type, f.Type)
}

func (f Filter) matchLocation(farm types.Farm) bool {
	return unset(f.Location) || strings.Contains(strings.ToLower(farm.Location), strings.ToLower(f.Location))
}

func (f Filter) matchPrice(farm types.Farm) bool {
	return farm.Price >= f.MinPrice && farm.Price <= f.MaxPrice
}

func (f Filter) matchRating(farm types.Farm) bool {
	return farm.Rating >= f.MinRating
}

func (f Filter) Matches(farm types.Farm) bool {
	return f.matchType(farm) && f.matchLocation(farm) && f.matchPrice(farm) && f.matchRating(farm)
}

// Apply returns the farms that match f, preserving order.
func Apply(farms []types.Farm, f Filter) []types.Farm {
	out := make([]types.Farm, 0, len(farms))
	for _, farm := range farms {
		if f.Matches(farm) {
			out = append(out, farm)
		}
	}
	return out
}
