package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type stubAuth struct {
	user User
	err  error
}

func (s *stubAuth) Authenticate(email, password string) (User, error) {
	if s.err != nil {
		return User{}, s.err
	}
	return s.user, nil
}

type stubProducts struct {
	items []Product
}

func (s *stubProducts) List(ctx context.Context, categoryID *int64, page, perPage int) ([]Product, int, error) {
	return s.items, len(s.items), nil
}

func (s *stubProducts) Find(ctx context.Context, id int64) (*Product, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubProducts) Create(ctx context.Context, in ProductInput) (*Product, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubProducts) Update(ctx context.Context, id int64, in ProductInput) (*Product, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubProducts) Delete(ctx context.Context, id int64) error { return nil }

type stubOffers struct {
	candidates []Offer
}

func (s *stubOffers) CandidatesForProduct(ctx context.Context, productID int64, categoryID *int64) ([]Offer, error) {
	return s.candidates, nil
}
func (s *stubOffers) List(ctx context.Context, page, perPage int) ([]Offer, int, error) {
	return s.candidates, len(s.candidates), nil
}
func (s *stubOffers) Find(ctx context.Context, id int64) (*Offer, error) { return nil, pgx.ErrNoRows }
func (s *stubOffers) Create(ctx context.Context, in OfferInput) (*Offer, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubOffers) Update(ctx context.Context, id int64, in OfferInput) (*Offer, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubOffers) Delete(ctx context.Context, id int64) error { return nil }

type stubCategories struct{}

func (stubCategories) List(ctx context.Context) ([]Category, error) { return nil, nil }
func (stubCategories) Create(ctx context.Context, name, slug string) (*Category, error) {
	return nil, pgx.ErrNoRows
}
func (stubCategories) Update(ctx context.Context, id int64, name, slug string) (*Category, error) {
	return nil, pgx.ErrNoRows
}
func (stubCategories) Delete(ctx context.Context, id int64) error { return nil }

type stubBanners struct{}

func (stubBanners) ListActive(ctx context.Context) ([]Banner, error) { return nil, nil }
func (stubBanners) List(ctx context.Context, page, perPage int) ([]Banner, int, error) {
	return nil, 0, nil
}
func (stubBanners) Create(ctx context.Context, b Banner) (*Banner, error) { return nil, pgx.ErrNoRows }
func (stubBanners) Update(ctx context.Context, id int64, b Banner) (*Banner, error) {
	return nil, pgx.ErrNoRows
}
func (stubBanners) Delete(ctx context.Context, id int64) error { return nil }

type stubUsers struct{}

func (stubUsers) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return nil, pgx.ErrNoRows
}
func (stubUsers) Create(ctx context.Context, email, passwordHash, role string) (int64, error) {
	return 0, nil
}
func (stubUsers) HasAdmin(ctx context.Context) (bool, error) { return true, nil }
func (stubUsers) List(ctx context.Context, page, perPage int) ([]AdminUserListItem, int, error) {
	return nil, 0, nil
}

func testRouter(t *testing.T, deps RouterDeps) (*gin.Engine, *SessionGuard) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := Config{SessionSecret: "router-test-secret"}
	guard := NewSessionGuard(cfg)
	if deps.Auth == nil {
		deps.Auth = &stubAuth{err: ErrInvalidCredentials}
	}
	if deps.Users == nil {
		deps.Users = stubUsers{}
	}
	if deps.Products == nil {
		deps.Products = &stubProducts{}
	}
	if deps.Categories == nil {
		deps.Categories = stubCategories{}
	}
	if deps.Banners == nil {
		deps.Banners = stubBanners{}
	}
	if deps.Offers == nil {
		deps.Offers = &stubOffers{}
	}
	return NewRouter(cfg, guard, deps), guard
}

func TestAdminRouteRedirectsToLogin(t *testing.T) {
	router, _ := testRouter(t, RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/offers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/admin/login" {
		t.Fatalf("location = %q", loc)
	}
}

func TestAdminRouteRejectsBadCookie(t *testing.T) {
	router, _ := testRouter(t, RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/offers", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect for invalid credential", rec.Code)
	}
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	auth := &stubAuth{user: User{ID: 7, Email: "admin@example.com", Role: "admin"}}
	router, guard := testRouter(t, RouterDeps{Auth: auth})

	body := strings.NewReader(`{"email":"admin@example.com","password":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatalf("no session cookie issued")
	}
	if claims := guard.Verify(sessionCookie.Value); claims == nil || claims.Email != "admin@example.com" {
		t.Fatalf("issued cookie does not verify")
	}
}

func TestLoginPathRedirectsWhenAlreadyAuthenticated(t *testing.T) {
	router, guard := testRouter(t, RouterDeps{})

	token, err := guard.Issue(7, "admin@example.com", "admin", time.Now())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(`{}`))
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect away from login", rec.Code)
	}
}

func TestSessionEndpointReturnsClaims(t *testing.T) {
	router, guard := testRouter(t, RouterDeps{})

	token, err := guard.Issue(7, "admin@example.com", "admin", time.Now())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		User struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if resp.User.ID != 7 || resp.User.Email != "admin@example.com" || resp.User.Role != "admin" {
		t.Fatalf("session user = %+v", resp.User)
	}
}

func TestNonAdminRoleForbidden(t *testing.T) {
	router, guard := testRouter(t, RouterDeps{})

	token, err := guard.Issue(8, "viewer@example.com", "viewer", time.Now())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/offers", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for non-admin role", rec.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	router, guard := testRouter(t, RouterDeps{})

	token, err := guard.Issue(7, "admin@example.com", "admin", time.Now())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "" || cookies[0].MaxAge >= 0 {
		t.Fatalf("logout must clear the session cookie, got %+v", cookies)
	}
}

func TestProductEndpointComputesPrice(t *testing.T) {
	categoryID := int64(3)
	productID := int64(42)
	products := &stubProducts{items: []Product{{
		ID:         productID,
		Name:       "ceramic mug",
		Price:      decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		CategoryID: &categoryID,
	}}}
	offers := &stubOffers{candidates: []Offer{
		{ID: 9, DiscountType: DiscountAmount, DiscountVal: decimal.NewFromInt(200), CategoryID: &categoryID},
		{ID: 5, DiscountType: DiscountPercent, DiscountVal: decimal.NewFromInt(10), ProductID: &productID},
	}}
	router, _ := testRouter(t, RouterDeps{Products: products, Offers: offers})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Pricing PriceResult `json:"pricing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !resp.Pricing.PriceFinal.Valid || !resp.Pricing.PriceFinal.Decimal.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("price_final = %+v, want 800", resp.Pricing.PriceFinal)
	}
	if !resp.Pricing.PriceOriginal.Valid || !resp.Pricing.PriceOriginal.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("price_original = %+v, want 1000", resp.Pricing.PriceOriginal)
	}
	if !resp.Pricing.HasDiscount || resp.Pricing.DiscountPercent != 20 {
		t.Fatalf("pricing = %+v", resp.Pricing)
	}
	if resp.Pricing.Offer == nil || resp.Pricing.Offer.ID != 9 {
		t.Fatalf("winning offer = %+v, want id 9", resp.Pricing.Offer)
	}
}

func TestProductEndpointSurfacesInvalidOfferAsServerError(t *testing.T) {
	productID := int64(42)
	products := &stubProducts{items: []Product{{
		ID:    productID,
		Name:  "ceramic mug",
		Price: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	}}}
	offers := &stubOffers{candidates: []Offer{
		{ID: 1, DiscountType: DiscountAmount, DiscountVal: decimal.NewFromInt(-5), ProductID: &productID},
	}}
	router, _ := testRouter(t, RouterDeps{Products: products, Offers: offers})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for corrupt offer data", rec.Code)
	}
}
