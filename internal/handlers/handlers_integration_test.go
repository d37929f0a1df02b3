package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"etalase/internal/app"
	"etalase/internal/cache"
	"etalase/internal/config"
	"etalase/internal/database"
	"etalase/internal/repositories"
	"etalase/pkg/rabbitmq"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test_jwt_secret",
		TokenTTL:         time.Hour,
		CacheTTL:         time.Minute,
		CORSAllowOrigins: "*",
	}
}

// setupApp builds the full application on a private in-memory database.
func setupApp(t *testing.T, deps app.Dependencies) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	deps.DB = db
	return app.New(testConfig(), deps), db
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	_, err := database.SeedProducts(context.Background(), repositories.NewGORMProductRepository(db))
	require.NoError(t, err)
}

// call sends a request and returns the status and raw body. A string body is
// sent verbatim; anything else is JSON encoded.
func call(t *testing.T, a *fiber.App, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func callJSON(t *testing.T, a *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	status, raw := call(t, a, method, path, token, body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return status, out
}

type productJSON struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Price       float64   `json:"price"`
	Description *string   `json:"description"`
	Photos      []string  `json:"photos"`
	IsAccessory bool      `json:"isAccessory"`
	Category    *string   `json:"category"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

func listProducts(t *testing.T, a *fiber.App, query string) []productJSON {
	t.Helper()
	status, raw := call(t, a, http.MethodGet, "/api/products"+query, "", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var products []productJSON
	require.NoError(t, json.Unmarshal(raw, &products))
	return products
}

func register(t *testing.T, a *fiber.App, username string) (string, uint) {
	t.Helper()
	status, body := callJSON(t, a, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, body)
	user := body["user"].(map[string]interface{})
	return body["token"].(string), uint(user["id"].(float64))
}

func validProduct(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":    name,
		"brand":   "Test Brand",
		"price":   10.5,
		"preview": "https://img.example.com/" + name + ".jpg",
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	a, _ := setupApp(t, app.Dependencies{})

	status, body := callJSON(t, a, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "testuser", user["username"])
	assert.Equal(t, "test@example.com", user["email"])
	assert.NotContains(t, user, "password")

	t.Run("login", func(t *testing.T) {
		status, body := callJSON(t, a, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "test@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Login successful", body["message"])
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, user["id"], body["user"].(map[string]interface{})["id"])
	})

	t.Run("legacy paths", func(t *testing.T) {
		status, _ := callJSON(t, a, http.MethodPost, "/api/login", "", map[string]string{
			"email":    "test@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("duplicate email", func(t *testing.T) {
		status, body := callJSON(t, a, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "another",
			"email":    "test@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["message"], "already exists")
	})

	t.Run("duplicate username", func(t *testing.T) {
		status, _ := callJSON(t, a, http.MethodPost, "/api/register", "", map[string]string{
			"username": "testuser",
			"email":    "other@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("missing field", func(t *testing.T) {
		status, body := callJSON(t, a, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "nopass",
			"email":    "nopass@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["message"], "password is required")
	})

	t.Run("malformed body", func(t *testing.T) {
		status, body := callJSON(t, a, http.MethodPost, "/api/auth/register", "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid request body", body["message"])
	})

	t.Run("bad credentials look the same", func(t *testing.T) {
		wrongStatus, wrongBody := callJSON(t, a, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "test@example.com",
			"password": "wrong",
		})
		unknownStatus, unknownBody := callJSON(t, a, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "ghost@example.com",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, wrongStatus)
		assert.Equal(t, http.StatusUnauthorized, unknownStatus)
		assert.Equal(t, wrongBody["message"], unknownBody["message"])
	})

	t.Run("email text is not format checked", func(t *testing.T) {
		status, body := callJSON(t, a, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "plain",
			"email":    "not-an-email",
			"password": "password123",
		})
		require.Equal(t, http.StatusCreated, status, body)

		status, _ = callJSON(t, a, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "not-an-email",
			"password": "password123",
		})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("login missing field", func(t *testing.T) {
		status, _ := callJSON(t, a, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "test@example.com"})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestRegisterThenBrowseCatalog(t *testing.T) {
	a, db := setupApp(t, app.Dependencies{})
	seedCatalog(t, db)

	status, body := callJSON(t, a, http.MethodPost, "/api/register", "", map[string]string{
		"username": "shopper",
		"email":    "shopper@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, body["token"])

	products := listProducts(t, a, "?category=clothing&maxPrice=50")
	require.Len(t, products, 1)
	assert.Equal(t, "Stylish T-Shirt", products[0].Name)
	assert.Equal(t, 29.99, products[0].Price)
	assert.Len(t, products[0].Photos, 2)
}

func TestListProductsFilters(t *testing.T) {
	a, db := setupApp(t, app.Dependencies{})
	seedCatalog(t, db)

	all := listProducts(t, a, "")
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].CreatedAt.Before(all[i].CreatedAt), "listing is not newest first")
	}
	assert.Equal(t, "Leather Watch", all[0].Name)

	tests := []struct {
		query string
		check func(p productJSON) bool
		count int
	}{
		{"?search=WATCH", func(p productJSON) bool { return p.Name == "Leather Watch" }, 1},
		{"?search=denim", func(p productJSON) bool { return p.Brand == "Denim Co" }, 1},
		{"?isAccessory=true", func(p productJSON) bool { return p.IsAccessory }, 1},
		{"?isAccessory=false", func(p productJSON) bool { return !p.IsAccessory }, 2},
		{"?isAccessory=maybe", func(p productJSON) bool { return !p.IsAccessory }, 2},
		{"?minPrice=79.99", func(p productJSON) bool { return p.Price >= 79.99 }, 2},
		{"?minPrice=30&maxPrice=100", func(p productJSON) bool { return p.Price >= 30 && p.Price <= 100 }, 1},
		{"?category=accessories&isAccessory=1", func(p productJSON) bool { return *p.Category == "accessories" && p.IsAccessory }, 1},
		{"?search=&category=", func(p productJSON) bool { return true }, 3},
		{"?isAccessory=", func(p productJSON) bool { return true }, 3},
		{"?search=%20%20", func(p productJSON) bool { return true }, 3},
		{"?search=%20watch%20", func(p productJSON) bool { return p.Name == "Leather Watch" }, 1},
		{"?search=laptop", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			products := listProducts(t, a, tt.query)
			assert.NotNil(t, products)
			assert.Len(t, products, tt.count)
			for _, p := range products {
				assert.True(t, tt.check(p), "%s does not satisfy %s", p.Name, tt.query)
			}
		})
	}

	status, body := callJSON(t, a, http.MethodGet, "/api/products?minPrice=cheap", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "minPrice")
}

func TestProductCRUD(t *testing.T) {
	a, _ := setupApp(t, app.Dependencies{})
	token, _ := register(t, a, "editor")

	input := validProduct("sneakers")
	input["isAccessory"] = "false"
	status, body := callJSON(t, a, http.MethodPost, "/api/products", token, input)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Product created successfully", body["message"])
	id := uint(body["id"].(float64))
	path := fmt.Sprintf("/api/products/%d", id)

	status, raw := call(t, a, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, status)
	var created productJSON
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "sneakers", created.Name)
	assert.NotNil(t, created.Photos)
	assert.Empty(t, created.Photos)
	assert.False(t, created.IsAccessory)
	assert.Nil(t, created.Description)
	assert.Zero(t, created.Stock)

	update := validProduct("sneakers v2")
	update["photos"] = []string{"a.jpg", "b.jpg"}
	update["category"] = "shoes"
	update["stock"] = 5
	update["isAccessory"] = 1
	status, body = callJSON(t, a, http.MethodPut, path, token, update)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Product updated successfully", body["message"])

	status, raw = call(t, a, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, status)
	var updated productJSON
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.Equal(t, "sneakers v2", updated.Name)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, updated.Photos)
	assert.Equal(t, "shoes", *updated.Category)
	assert.Equal(t, 5, updated.Stock)
	assert.True(t, updated.IsAccessory)

	t.Run("invalid input", func(t *testing.T) {
		bad := validProduct("broken")
		bad["price"] = -1
		status, _ := callJSON(t, a, http.MethodPost, "/api/products", token, bad)
		assert.Equal(t, http.StatusBadRequest, status)

		delete(bad, "price")
		status, body := callJSON(t, a, http.MethodPut, path, token, bad)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["message"], "price is required")
	})

	status, body = callJSON(t, a, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Product deleted successfully", body["message"])

	status, _ = callJSON(t, a, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProductMissingIDs(t *testing.T) {
	a, db := setupApp(t, app.Dependencies{})
	seedCatalog(t, db)
	token, _ := register(t, a, "editor")

	before := len(listProducts(t, a, ""))

	status, body := callJSON(t, a, http.MethodDelete, "/api/products/9999", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["message"], "not found")
	assert.Len(t, listProducts(t, a, ""), before)

	status, _ = callJSON(t, a, http.MethodPut, "/api/products/9999", token, validProduct("ghost"))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = callJSON(t, a, http.MethodGet, "/api/products/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProtectedRoutes(t *testing.T) {
	a, _ := setupApp(t, app.Dependencies{})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"no header", "", http.StatusUnauthorized, "Access token required"},
		{"scheme only", "Bearer", http.StatusUnauthorized, "Access token required"},
		{"garbage token", "Bearer not-a-token", http.StatusForbidden, "Invalid or expired token"},
	}
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/products"},
		{http.MethodPut, "/api/products/1"},
		{http.MethodDelete, "/api/products/1"},
		{http.MethodPost, "/api/orders"},
		{http.MethodGet, "/api/orders"},
	}
	for _, tt := range tests {
		for _, r := range routes {
			t.Run(tt.name+" "+r.method+" "+r.path, func(t *testing.T) {
				req := httptest.NewRequest(r.method, r.path, nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				resp, err := a.Test(req, -1)
				require.NoError(t, err)
				defer resp.Body.Close()

				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.wantStatus, resp.StatusCode)
				assert.Equal(t, tt.wantMsg, body["message"])
			})
		}
	}

	// Reads stay public.
	status, _ := call(t, a, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestOrdersAreIsolatedPerAccount(t *testing.T) {
	a, _ := setupApp(t, app.Dependencies{})
	tokenA, idA := register(t, a, "alice")
	tokenB, _ := register(t, a, "bob")

	status, body := callJSON(t, a, http.MethodPost, "/api/orders", tokenA, map[string]interface{}{
		"products":    []map[string]interface{}{{"productId": 1, "quantity": 2}},
		"totalAmount": 59.98,
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Order created successfully", body["message"])
	assert.NotZero(t, body["orderId"])

	status, raw := call(t, a, http.MethodGet, "/api/orders", tokenA, nil)
	require.Equal(t, http.StatusOK, status)
	var ordersA []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &ordersA))
	require.Len(t, ordersA, 1)
	assert.Equal(t, float64(idA), ordersA[0]["user_id"])
	assert.Equal(t, "pending", ordersA[0]["status"])
	assert.Equal(t, 59.98, ordersA[0]["total_amount"])
	lines := ordersA[0]["products"].([]interface{})
	require.Len(t, lines, 1)
	assert.Equal(t, float64(1), lines[0].(map[string]interface{})["productId"])

	status, raw = call(t, a, http.MethodGet, "/api/orders", tokenB, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(raw))

	status, _ = callJSON(t, a, http.MethodPost, "/api/orders", tokenB, `{"products": [`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOrderLinesRoundTripVerbatim(t *testing.T) {
	a, _ := setupApp(t, app.Dependencies{})
	token, _ := register(t, a, "carol")

	line := `{"productId":1,"quantity":2,"name":"Stylish T-Shirt","price":29.99,"size":"M"}`
	status, body := callJSON(t, a, http.MethodPost, "/api/orders", token, `{"products":[`+line+`,{"productId":"abc","quantity":"2"}],"totalAmount":59.98}`)
	require.Equal(t, http.StatusCreated, status, body)

	status, raw := call(t, a, http.MethodGet, "/api/orders", token, nil)
	require.Equal(t, http.StatusOK, status)
	var orders []struct {
		Products []json.RawMessage `json:"products"`
	}
	require.NoError(t, json.Unmarshal(raw, &orders))
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Products, 2)
	assert.JSONEq(t, line, string(orders[0].Products[0]))
	assert.JSONEq(t, `{"productId":"abc","quantity":"2"}`, string(orders[0].Products[1]))

	for _, products := range []string{`"abc"`, `{"productId":1}`, `7`} {
		status, body := callJSON(t, a, http.MethodPost, "/api/orders", token, `{"products":`+products+`}`)
		assert.Equal(t, http.StatusBadRequest, status, products)
		assert.Contains(t, body["message"], "products")
	}

	status, body = callJSON(t, a, http.MethodPost, "/api/orders", token, `{"products":null}`)
	require.Equal(t, http.StatusCreated, status, body)
}

// recordingPublisher collects published order events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []rabbitmq.OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event rabbitmq.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestOrderCreationPublishesEvent(t *testing.T) {
	publisher := &recordingPublisher{}
	a, _ := setupApp(t, app.Dependencies{Publisher: publisher})
	token, id := register(t, a, "alice")

	status, body := callJSON(t, a, http.MethodPost, "/api/orders", token, map[string]interface{}{})
	require.Equal(t, http.StatusCreated, status, body)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, rabbitmq.OrderCreated, event.Type)
	assert.Equal(t, id, event.UserID)
	assert.Equal(t, uint(body["orderId"].(float64)), event.OrderID)
	assert.Zero(t, event.Lines)
}

func TestCachedCatalogSeesWrites(t *testing.T) {
	srv := miniredis.RunT(t)
	c, err := cache.New(context.Background(), cache.Options{Addr: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	a, db := setupApp(t, app.Dependencies{Cache: c})
	seedCatalog(t, db)
	token, _ := register(t, a, "editor")

	require.Len(t, listProducts(t, a, "?category=clothing"), 2)
	assert.NotEmpty(t, srv.Keys())

	input := validProduct("hoodie")
	input["category"] = "clothing"
	status, _ := callJSON(t, a, http.MethodPost, "/api/products", token, input)
	require.Equal(t, http.StatusCreated, status)

	assert.Len(t, listProducts(t, a, "?category=clothing"), 3)
}

func TestHealthAndMetrics(t *testing.T) {
	a, db := setupApp(t, app.Dependencies{})
	seedCatalog(t, db)

	status, body := callJSON(t, a, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(3), body["products"])
	assert.NotEmpty(t, body["time"])

	status, raw := call(t, a, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "etalase_http_requests_total")

	require.NoError(t, database.Close(db))
	status, body = callJSON(t, a, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body["status"])
}
