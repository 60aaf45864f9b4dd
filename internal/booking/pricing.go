package booking

import (
	"errors"
	"strings"

	"github.com/danmuck/vetbook/internal/store"
)

const maxServicesPerBooking = 10

type QuoteRequest struct {
	ServiceIDs []string `json:"service_ids"`
	CommuneID  string   `json:"commune_id"`
	HomeVisit  bool     `json:"home_visit"`
}

type LineItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Quote is the priced breakdown of a service selection.
type Quote struct {
	Items           []LineItem `json:"items"`
	Subtotal        int64      `json:"subtotal"`
	Surcharge       int64      `json:"surcharge"`
	Total           int64      `json:"total"`
	HomeVisit       bool       `json:"home_visit"`
	CommuneID       string     `json:"commune_id,omitempty"`
	CommuneName     string     `json:"commune_name,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
}

// Quote prices a selection of services, adding the commune surcharge for
// home visits.
func (c *Clinic) Quote(req QuoteRequest) (Quote, error) {
	var q Quote
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		q, err = quoteTx(tx, req)
		return err
	})
	return q, err
}

func quoteTx(tx *store.Tx, req QuoteRequest) (Quote, error) {
	if len(req.ServiceIDs) == 0 {
		return Quote{}, invalidf("at least one service is required")
	}
	if len(req.ServiceIDs) > maxServicesPerBooking {
		return Quote{}, invalidf("at most %d services per booking", maxServicesPerBooking)
	}

	q := Quote{Items: make([]LineItem, 0, len(req.ServiceIDs)), HomeVisit: req.HomeVisit}
	seen := make(map[string]struct{}, len(req.ServiceIDs))
	for _, raw := range req.ServiceIDs {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup {
			return Quote{}, invalidf("service %q selected twice", id)
		}
		seen[id] = struct{}{}

		var s Service
		if err := get(tx, servicesCollection, "service", id, &s); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Quote{}, invalidf("unknown service %q", id)
			}
			return Quote{}, err
		}
		if !s.Active {
			return Quote{}, invalidf("service %q is not offered", s.Name)
		}
		if req.HomeVisit && !s.HomeVisit {
			return Quote{}, invalidf("service %q is not available as a home visit", s.Name)
		}
		q.Items = append(q.Items, LineItem{
			ServiceID:       s.ID,
			Name:            s.Name,
			Price:           s.Price,
			DurationMinutes: s.DurationMinutes,
		})
		q.Subtotal += s.Price
		q.DurationMinutes += s.DurationMinutes
	}

	if req.HomeVisit {
		communeID := strings.TrimSpace(req.CommuneID)
		if communeID == "" {
			return Quote{}, invalidf("home visits require a commune")
		}
		var cm Commune
		if err := get(tx, communesCollection, "commune", communeID, &cm); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Quote{}, invalidf("unknown commune %q", communeID)
			}
			return Quote{}, err
		}
		if !cm.Active {
			return Quote{}, invalidf("commune %q is outside the service area", cm.Name)
		}
		q.CommuneID = cm.ID
		q.CommuneName = cm.Name
		q.Surcharge = cm.Surcharge
	}

	q.Total = q.Subtotal + q.Surcharge
	return q, nil
}
