package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"etalase/internal/models"
)

// AccountView is the public part of an account.
type AccountView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newAccountView(u *models.User) AccountView {
	return AccountView{ID: u.ID, Username: u.Username, Email: u.Email}
}

// ProductView is a catalog item as returned to clients, with photos
// decoded and the accessory flag as a boolean.
type ProductView struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Price       float64   `json:"price"`
	Description *string   `json:"description"`
	Preview     string    `json:"preview"`
	Photos      []string  `json:"photos"`
	IsAccessory bool      `json:"isAccessory"`
	Category    *string   `json:"category"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

func newProductView(p *models.Product) ProductView {
	return ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Price:       p.Price,
		Description: p.Description,
		Preview:     p.Preview,
		Photos:      decodePhotos(p.ID, p.Photos),
		IsAccessory: p.IsAccessory,
		Category:    p.Category,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
	}
}

func decodePhotos(id uint, raw string) []string {
	photos := []string{}
	if strings.TrimSpace(raw) == "" {
		return photos
	}
	if err := json.Unmarshal([]byte(raw), &photos); err != nil {
		slog.Warn("stored photos are not a JSON array", "product_id", id, "error", err.Error())
		return []string{}
	}
	if photos == nil {
		return []string{}
	}
	return photos
}

func encodePhotos(photos []string) (string, error) {
	if photos == nil {
		photos = []string{}
	}
	b, err := json.Marshal(photos)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeOrderLines splits a stored snapshot into its lines, each kept as
// the client sent it.
func decodeOrderLines(id uint, raw string) []json.RawMessage {
	lines := []json.RawMessage{}
	if strings.TrimSpace(raw) == "" {
		return lines
	}
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		slog.Warn("stored order lines are not a JSON array", "order_id", id, "error", err.Error())
		return []json.RawMessage{}
	}
	if lines == nil {
		return []json.RawMessage{}
	}
	return lines
}

// OrderView is an order as returned to its owner.
type OrderView struct {
	ID          uint              `json:"id"`
	UserID      uint              `json:"user_id"`
	Products    []json.RawMessage `json:"products"`
	TotalAmount float64           `json:"total_amount"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newOrderView(o *models.Order) OrderView {
	return OrderView{
		ID:          o.ID,
		UserID:      o.UserID,
		Products:    decodeOrderLines(o.ID, o.Products),
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
	}
}

// FlexBool decodes the accessory flag from a JSON bool, number or string.
type FlexBool bool

// UnmarshalJSON treats true, non-zero numbers and strings accepted by
// strconv.ParseBool as true. Anything else is false.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null" || s == "":
		*b = false
	case s == "true" || s == "false":
		*b = s == "true"
	case s[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseBool(strings.TrimSpace(str))
		*b = FlexBool(err == nil && v)
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("isAccessory must be a boolean: %w", err)
		}
		*b = f != 0
	}
	return nil
}
