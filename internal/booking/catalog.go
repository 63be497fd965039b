// Package booking implements the booking tool server: an in-memory tour
// catalog with customer lookup and booking creation, exposed over MCP.
package booking

import (
	"strings"
	"sync"
	"time"
)

// Customer is a known traveler.
type Customer struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	Preferences map[string]any `json:"preferences"`
}

// Tour is one bookable package.
type Tour struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	BasePrice   int    `json:"base_price"`
	Nights      int    `json:"nights"`
	Destination string `json:"destination"`
}

// Booking records a confirmed reservation.
type Booking struct {
	ID         int    `json:"id"`
	CustomerID int    `json:"customer_id"`
	TourCode   string `json:"tour_code"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	TotalPrice int    `json:"total_price"`
	Status     string `json:"status"`
}

// Catalog is the in-memory data store behind the booking tools.
type Catalog struct {
	mu        sync.RWMutex
	customers []Customer
	tours     []Tour
	bookings  []Booking
	nextID    int
}

// NewCatalog returns a catalog seeded with the demo customer and the
// standard tour lineup.
func NewCatalog() *Catalog {
	return &Catalog{
		customers: []Customer{
			{
				ID:          1,
				Name:        "Arundeepak",
				Email:       "arundeepak92@gmail.com",
				Phone:       "+919999999999",
				Preferences: map[string]any{},
			},
		},
		tours: []Tour{
			{"GOA-5D4N-OPT2", "Goa 5D/4N – Beachside", 38000, 4, "Goa"},
			{"DEL-3D2N-CITY", "Delhi 3D/2N – Heritage", 22000, 2, "Delhi"},
			{"BLR-3D2N-URBAN", "Bengaluru 3D/2N – Tech & Food", 21000, 2, "Bengaluru"},
			{"MUM-4D3N-COAST", "Mumbai 4D/3N – City & Coast", 26000, 3, "Mumbai"},
			{"JAIP-4D3N-PINK", "Jaipur 4D/3N – Forts & Bazaars", 24000, 3, "Jaipur"},
			{"KER-5D4N-BACK", "Kerala 5D/4N – Backwaters", 42000, 4, "Kerala"},
			{"LAD-6D5N-ALT", "Ladakh 6D/5N – High Altitude", 52000, 5, "Ladakh"},
			{"AGN-3D2N-WINE", "Nashik 3D/2N – Vineyards", 18000, 2, "Nashik"},
			{"KOL-3D2N-ART", "Kolkata 3D/2N – Culture & Cuisine", 20000, 2, "Kolkata"},
			{"PUN-3D2N-FOOD", "Pune 3D/2N – Food & History", 19000, 2, "Pune"},
			{"HYD-4D3N-CHAR", "Hyderabad 4D/3N – Charminar & Biryani", 23000, 3, "Hyderabad"},
		},
		nextID: 1,
	}
}

// CustomerByPhone finds a customer by exact phone match.
func (c *Catalog) CustomerByPhone(phone string) (Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cust := range c.customers {
		if cust.Phone == phone {
			return cust, true
		}
	}
	return Customer{}, false
}

// CustomerByID finds a customer by id.
func (c *Catalog) CustomerByID(id int) (Customer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cust := range c.customers {
		if cust.ID == id {
			return cust, true
		}
	}
	return Customer{}, false
}

// TourByCode finds a tour by its code.
func (c *Catalog) TourByCode(code string) (Tour, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tours {
		if t.Code == code {
			return t, true
		}
	}
	return Tour{}, false
}

// SearchTours filters by destination (case-insensitive exact match) and
// maximum price. Zero values mean no filter.
func (c *Catalog) SearchTours(destination string, budget int) []Tour {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Tour
	for _, t := range c.tours {
		if destination != "" && !strings.EqualFold(t.Destination, destination) {
			continue
		}
		if budget > 0 && t.BasePrice > budget {
			continue
		}
		out = append(out, t)
	}
	return out
}

// CreateBooking records a confirmed booking and returns it.
func (c *Catalog) CreateBooking(customerID int, tourCode, startDate, endDate string, totalPrice int) Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := Booking{
		ID:         c.nextID,
		CustomerID: customerID,
		TourCode:   tourCode,
		StartDate:  startDate,
		EndDate:    endDate,
		TotalPrice: totalPrice,
		Status:     "CONFIRMED",
	}
	c.nextID++
	c.bookings = append(c.bookings, b)
	return b
}

// BookingsByPhone lists a customer's bookings, newest first, joined with
// tour details.
func (c *Catalog) BookingsByPhone(phone string) []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var cust *Customer
	for i := range c.customers {
		if c.customers[i].Phone == phone {
			cust = &c.customers[i]
			break
		}
	}
	if cust == nil {
		return nil
	}

	var out []map[string]any
	for i := len(c.bookings) - 1; i >= 0; i-- {
		b := c.bookings[i]
		if b.CustomerID != cust.ID {
			continue
		}
		entry := map[string]any{
			"id":          b.ID,
			"customer_id": b.CustomerID,
			"tour_code":   b.TourCode,
			"start_date":  b.StartDate,
			"end_date":    b.EndDate,
			"total_price": b.TotalPrice,
			"status":      b.Status,
		}
		for _, t := range c.tours {
			if t.Code == b.TourCode {
				entry["tour_name"] = t.Name
				entry["destination"] = t.Destination
				entry["nights"] = t.Nights
				break
			}
		}
		out = append(out, entry)
	}
	return out
}

// validDate reports whether s is an ISO calendar date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
