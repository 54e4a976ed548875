package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/npezzotti/go-agritour/internal/listing"
	"github.com/npezzotti/go-agritour/internal/types"
)

// filterFromQuery builds a listing filter from the query string. Absent
// parameters keep the filter's defaults.
func filterFromQuery(q url.Values) (listing.Filter, error) {
	f := listing.NewFilter()
	f.Type = q.Get("type")
	f.Location = q.Get("location")

	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
		{"min_rating", &f.MinRating},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return listing.Filter{}, err
		}
		*p.dst = v
	}

	return f, nil
}

func (s *AgriTourApp) listFarms(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.svc.Catalog.Load()
	s.writeJson(w, http.StatusOK, listing.Apply(s.svc.Catalog.Farms(), f))
}

func (s *AgriTourApp) topFarms(w http.ResponseWriter, r *http.Request) {
	n := listing.TopRatedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		n = v
	}

	s.svc.Catalog.Load()
	s.writeJson(w, http.StatusOK, s.svc.Catalog.TopRated(n))
}

func (s *AgriTourApp) farmOptions(w http.ResponseWriter, _ *http.Request) {
	s.svc.Catalog.Load()
	s.writeJson(w, http.StatusOK, s.svc.Catalog.Options())
}

func (s *AgriTourApp) getFarm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.svc.Catalog.Load()
	if farm, ok := s.svc.Catalog.Get(id); ok {
		s.writeJson(w, http.StatusOK, farm)
		return
	}

	// farms created by other instances are not in this catalog
	dbFarm, err := s.db.GetFarmById(id)
	if err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, listing.FromModel(dbFarm))
}

func (s *AgriTourApp) myFarms(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	farms, err := s.db.ListFarmsByOwner(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, listing.FromModels(farms))
}

// createFarm takes a multipart form with an optional "image" file. Only
// farmers may list farms.
func (s *AgriTourApp) createFarm(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acc, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if types.Role(acc.Role) != types.RoleFarmer {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var price float64
	if raw := r.FormValue("price"); raw != "" {
		price, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	image, err := readUpload(r, "image")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	farm, err := s.svc.Publisher.Publish(r.Context(), userId, listing.NewFarm{
		Name:        r.FormValue("name"),
		Location:    r.FormValue("location"),
		Price:       price,
		Type:        r.FormValue("type"),
		Description: r.FormValue("description"),
		Image:       image,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, listing.ErrInvalidFarm) || errors.Is(err, listing.ErrImageUpload) {
			errResp = NewBadRequestError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, farm)
}
