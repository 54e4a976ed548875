package listing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-agritour/internal/blob"
	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/stats"
	"github.com/npezzotti/go-agritour/internal/types"
)

const MetricFarmsCreated = "FarmsCreated"

var (
	ErrInvalidFarm = errors.New("invalid farm")
	ErrImageUpload = errors.New("image upload failed")
)

type FarmCreator interface {
	CreateFarm(params database.CreateFarmParams) (database.Farm, error)
}

type NewFarm struct {
	Name        string  `json:"name" validate:"required"`
	Location    string  `json:"location" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Image       []byte  `json:"-"`
}

// Publisher creates farm listings and adds them to the catalog.
type Publisher struct {
	log      *log.Logger
	db       FarmCreator
	blobs    blob.Store
	catalog  *Catalog
	baseURL  string
	stats    stats.StatsProvider
	validate *validator.Validate
}

func NewPublisher(logger *log.Logger, db FarmCreator, blobs blob.Store, catalog *Catalog, baseURL string, su stats.StatsProvider) *Publisher {
	su.RegisterMetric(MetricFarmsCreated)

	return &Publisher{
		log:      logger,
		db:       db,
		blobs:    blobs,
		catalog:  catalog,
		baseURL:  baseURL,
		stats:    su,
		validate: validator.New(),
	}
}

// Publish uploads the optional image first. A failed upload aborts
// before the farm is written.
func (p *Publisher) Publish(ctx context.Context, ownerId string, nf NewFarm) (types.Farm, error) {
	if err := p.validate.Struct(nf); err != nil {
		return types.Farm{}, fmt.Errorf("%w: %v", ErrInvalidFarm, err)
	}

	var imageUrl string
	if len(nf.Image) > 0 {
		url, err := p.uploadImage(ctx, nf.Image)
		if err != nil {
			p.log.Printf("upload farm image: %v", err)
			return types.Farm{}, ErrImageUpload
		}
		imageUrl = url
	}

	farmType := strings.TrimSpace(nf.Type)
	if farmType == "" {
		farmType = types.DefaultFarmType
	}

	dbFarm, err := p.db.CreateFarm(database.CreateFarmParams{
		OwnerId:     ownerId,
		Name:        nf.Name,
		Location:    nf.Location,
		ImageUrl:    imageUrl,
		Price:       nf.Price,
		Type:        farmType,
		Description: nf.Description,
	})
	if err != nil {
		return types.Farm{}, fmt.Errorf("create farm: %w", err)
	}

	farm := FromModel(dbFarm)
	p.catalog.Add(farm)
	p.stats.Incr(MetricFarmsCreated)

	return farm, nil
}

func (p *Publisher) uploadImage(ctx context.Context, data []byte) (string, error) {
	compressed, err := blob.Compress(data)
	if err != nil {
		return "", err
	}

	id, err := p.blobs.Put(ctx, "farm.jpg", compressed)
	if err != nil {
		return "", err
	}

	return blob.URL(p.baseURL, id), nil
}
