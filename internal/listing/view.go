package listing

import (
	"context"
	"sync"

	"github.com/npezzotti/go-agritour/internal/observable"
	"github.com/npezzotti/go-agritour/internal/types"
)

// View is one session's filtered view over the catalog. Every setter
// recomputes the visible set over the whole master list.
type View struct {
	catalog   *Catalog
	mu        sync.Mutex
	filter    Filter
	// autoRange holds while the price range follows the catalog, until
	// the user picks one
	autoRange bool
	visible   *observable.Value[[]types.Farm]
}

func NewView(c *Catalog) *View {
	v := &View{
		catalog:   c,
		filter:    NewFilter(),
		autoRange: true,
		visible:   observable.New([]types.Farm{}),
	}
	v.ApplyFilters()
	return v
}

func (v *View) Visible() *observable.Value[[]types.Farm] {
	return v.visible
}

func (v *View) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

func (v *View) SetTypeFilter(farmType string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Type = farmType
	v.applyLocked()
}

func (v *View) SetLocationFilter(location string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Location = location
	v.applyLocked()
}

func (v *View) SetPriceRange(lo, hi float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.autoRange = false
	v.filter.MinPrice = lo
	v.filter.MaxPrice = hi
	v.applyLocked()
}

func (v *View) SetMinRating(rating float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.MinRating = rating
	v.applyLocked()
}

func (v *View) ApplyFilters() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.applyLocked()
}

func (v *View) applyLocked() {
	farms, loaded := v.catalog.snapshot()

	// once the catalog is loaded an automatic range covers every listing,
	// including farms added later
	if v.autoRange && loaded {
		v.filter.MinPrice = 0
		v.filter.MaxPrice = maxPrice(farms)
	}

	v.visible.Set(Apply(farms, v.filter))
}

// Watch recomputes the visible set whenever the catalog changes, until
// ctx is done.
func (v *View) Watch(ctx context.Context) {
	for range v.catalog.Subscribe(ctx) {
		v.ApplyFilters()
	}
}
