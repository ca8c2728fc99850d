package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ndmitriev/estore/internal/models"
)

var testSecret = []byte("test-jwt-secret")

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func makeToken(t *testing.T, userID uint, role string) *http.Cookie {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  float64(userID),
		"role": role,
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	return &http.Cookie{Name: "accessToken", Value: token, Path: "/"}
}

func doJSONRequest(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, c
}

// fakeCart is an in-memory CartStore standing in for Redis.
type fakeCart struct {
	mu    sync.Mutex
	carts map[uint]map[uint]uint
}

func newFakeCart() *fakeCart {
	return &fakeCart{carts: make(map[uint]map[uint]uint)}
}

func (f *fakeCart) Get(_ context.Context, userID uint) (map[uint]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint]uint, len(f.carts[userID]))
	for k, v := range f.carts[userID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeCart) Add(_ context.Context, userID, productID, quantity uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.carts[userID] == nil {
		f.carts[userID] = make(map[uint]uint)
	}
	f.carts[userID][productID] += quantity
	return nil
}

func (f *fakeCart) Remove(_ context.Context, userID, productID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts[userID], productID)
	return nil
}

func (f *fakeCart) Clear(_ context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, userID)
	return nil
}

// fakeIndex records index mutations and serves canned rankings.
type fakeIndex struct {
	mu       sync.Mutex
	upserts  []uint
	removals []uint
	ranked   []uint
}

func (f *fakeIndex) Upsert(_ context.Context, product *models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, product.ID)
}

func (f *fakeIndex) Remove(_ context.Context, productID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals = append(f.removals, productID)
}

func (f *fakeIndex) Search(_ context.Context, _ string, _, _ int) []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.ranked...)
}

// fakeActivity records activity emissions.
type activityEvent struct {
	EventType string
	UserID    *uint
	Payload   map[string]any
}

type fakeActivity struct {
	mu     sync.Mutex
	events []activityEvent
}

func (f *fakeActivity) PublishActivity(_ context.Context, eventType string, userID *uint, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, activityEvent{EventType: eventType, UserID: userID, Payload: payload})
}

func (f *fakeActivity) snapshot() []activityEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]activityEvent(nil), f.events...)
}
