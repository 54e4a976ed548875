// Package listing caches every farm listing in memory and derives filtered
// views of that cache.
package listing

import (
	"context"
	"log"
	"slices"
	"sort"
	"sync"

	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/observable"
	"github.com/npezzotti/go-agritour/internal/types"
)

const (
	fallbackMaxPrice = 5000
	TopRatedLimit    = 10
)

type FarmLister interface {
	ListFarms() ([]database.Farm, error)
}

// Catalog is the master cache of farm listings. It is fetched from the
// repository once; a failed fetch leaves it empty and is not retried.
type Catalog struct {
	log    *log.Logger
	src    FarmLister
	once   sync.Once
	mu     sync.RWMutex
	loaded bool
	farms  *observable.Value[[]types.Farm]
}

func NewCatalog(logger *log.Logger, src FarmLister) *Catalog {
	return &Catalog{
		log:   logger,
		src:   src,
		farms: observable.New([]types.Farm{}),
	}
}

func FromModel(f database.Farm) types.Farm {
	return types.Farm{
		Id:          f.Id,
		OwnerId:     f.OwnerId,
		Name:        f.Name,
		Location:    f.Location,
		ImageUrl:    f.ImageUrl,
		Price:       f.Price,
		Rating:      f.Rating,
		Type:        f.Type,
		Description: f.Description,
	}
}

func FromModels(fs []database.Farm) []types.Farm {
	out := make([]types.Farm, len(fs))
	for i, f := range fs {
		out[i] = FromModel(f)
	}
	return out
}

// Load fetches the master list. Only the first call does any work.
func (c *Catalog) Load() {
	c.once.Do(func() {
		dbFarms, err := c.src.ListFarms()
		if err != nil {
			c.log.Printf("list farms: %v", err)
			return
		}

		c.mu.Lock()
		c.farms.Set(FromModels(dbFarms))
		c.loaded = true
		c.mu.Unlock()

		c.log.Printf("loaded %d farms into catalog", len(dbFarms))
	})
}

// Loaded reports whether the master list was fetched successfully.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// snapshot returns the master list together with whether it was loaded,
// so a reader never sees the loaded flag without the list.
func (c *Catalog) snapshot() ([]types.Farm, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.farms.Get()), c.loaded
}

// Add appends a newly created farm to the master list.
func (c *Catalog) Add(f types.Farm) {
	c.farms.Update(func(cur []types.Farm) []types.Farm {
		next := make([]types.Farm, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, f)
	})
}

// Farms returns a copy of the master list.
func (c *Catalog) Farms() []types.Farm {
	return slices.Clone(c.farms.Get())
}

func (c *Catalog) Get(id string) (types.Farm, bool) {
	for _, f := range c.farms.Get() {
		if f.Id == id {
			return f, true
		}
	}
	return types.Farm{}, false
}

// Subscribe streams the master list after every change.
func (c *Catalog) Subscribe(ctx context.Context) <-chan []types.Farm {
	return c.farms.Subscribe(ctx)
}

// MaxPrice is the highest listed price, or 5000 when nothing is listed.
func (c *Catalog) MaxPrice() float64 {
	return maxPrice(c.farms.Get())
}

func maxPrice(farms []types.Farm) float64 {
	if len(farms) == 0 {
		return fallbackMaxPrice
	}

	highest := farms[0].Price
	for _, f := range farms[1:] {
		if f.Price > highest {
			highest = f.Price
		}
	}
	return highest
}

// Options lists the distinct categories and locations, each led by "All",
// plus the maximum price.
func (c *Catalog) Options() types.FarmOptions {
	farms := c.farms.Get()

	return types.FarmOptions{
		Types:     distinctOptions(farms, func(f types.Farm) string { return f.Type }),
		Locations: distinctOptions(farms, func(f types.Farm) string { return f.Location }),
		MaxPrice:  maxPrice(farms),
	}
}

func distinctOptions(farms []types.Farm, field func(types.Farm) string) []string {
	seen := make(map[string]struct{}, len(farms))
	values := make([]string, 0, len(farms))
	for _, f := range farms {
		v := field(f)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)

	return append([]string{AllOption}, values...)
}

// TopRated returns up to n farms ordered by rating, highest first.
func (c *Catalog) TopRated(n int) []types.Farm {
	farms := c.Farms()
	sort.SliceStable(farms, func(i, j int) bool {
		return farms[i].Rating > farms[j].Rating
	})

	if n >= 0 && len(farms) > n {
		farms = farms[:n]
	}
	return farms
}
