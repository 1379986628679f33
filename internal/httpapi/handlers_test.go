package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/importer"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/service"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager,
// real Service and real Importer so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, 0)
	tracker := importer.NewTracker()
	imp := importer.New(repo, nil, tracker)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, imp, tracker, auth, "*")
}

// login authenticates against the seeded store and returns a bearer token.
func login(t *testing.T, api *API, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

// doJSON performs an authenticated JSON request with a valid CSRF token.
func doJSON(t *testing.T, api *API, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestLoginAndProductLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	retail := 150.0
	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		SKU:                   "ip13-128",
		Name:                  "iPhone 13 128 Go",
		PurchasePriceWithFees: 100,
		RetailPrice:           &retail,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if created.Product.SKU != "IP13-128" {
		t.Fatalf("expected uppercased SKU IP13-128, got %q", created.Product.SKU)
	}
	if created.Product.MarginValue != 50 {
		t.Fatalf("expected margin 50, got %v", created.Product.MarginValue)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/"+created.Product.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: expected 200, got %d", rec.Code)
	}

	newPurchase := 120.0
	rec = doJSON(t, api, http.MethodPatch, "/api/v1/products/"+created.Product.ID, token, domain.ProductUpdateRequest{
		PurchasePriceWithFees: &newPurchase,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch product: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var patched struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&patched); err != nil {
		t.Fatalf("decode patched product: %v", err)
	}
	if patched.Product.RetailPrice != 150 {
		t.Fatalf("sale price should hold at 150, got %v", patched.Product.RetailPrice)
	}
	if patched.Product.MarginValue != 30 {
		t.Fatalf("expected re-derived margin 30, got %v", patched.Product.MarginValue)
	}

	rec = doJSON(t, api, http.MethodDelete, "/api/v1/products/"+created.Product.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete product: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestStaffCannotDeleteProduct(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, "admin", "admin123")
	staff := login(t, api, "staff", "staff123")

	retail := 20.0
	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", admin, domain.ProductCreateRequest{
		SKU:                   "CABLE-1",
		Name:                  "Cable USB-C",
		PurchasePriceWithFees: 5,
		RetailPrice:           &retail,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d", rec.Code)
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	rec = doJSON(t, api, http.MethodDelete, "/api/v1/products/"+created.Product.ID, staff, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff delete: expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestImportEndpointRunsProductImport(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	csv := "sku,name,purchase_price_with_fees,retail_price\n" +
		"HTTP-1,Via HTTP,100,150\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/products?mode=additive", strings.NewReader(csv))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Summary importer.Summary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if resp.Summary.Created != 1 {
		t.Fatalf("expected 1 created, got %+v", resp.Summary)
	}

	list := doJSON(t, api, http.MethodGet, "/api/v1/products", token, nil)
	if !strings.Contains(list.Body.String(), "HTTP-1") {
		t.Fatalf("imported product missing from listing: %s", list.Body.String())
	}
}

func TestImportAbortReturns422(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	csv := "sku,name,purchase_price_with_fees,retail_price\n" +
		",Missing Key,100,150\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/products?mode=additive", strings.NewReader(csv))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on aborted import, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestImportRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	staff := login(t, api, "staff", "staff123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/products?mode=additive", strings.NewReader("sku,name\nX,Y\n"))
	req.Header.Set("Authorization", "Bearer "+staff)
	req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff import, got %d", rec.Code)
	}
}

func TestExportProductsReturnsCSV(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	retail := 24.9
	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		SKU:                   "EXP-1",
		Name:                  "Coque silicone",
		PurchasePriceWithFees: 8,
		RetailPrice:           &retail,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	api.Handler().ServeHTTP(out, req)

	if out.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", out.Code)
	}
	if ct := out.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv content type, got %q", ct)
	}
	if !strings.Contains(out.Body.String(), "EXP-1") {
		t.Fatalf("export missing product row: %s", out.Body.String())
	}
}

func TestDocumentSettingsAndPDF(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/settings/documents/invoice", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var settings domain.DocumentSettings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.Prefix != "FA-" {
		t.Fatalf("expected default prefix FA-, got %q", settings.Prefix)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/customers", token, domain.Customer{
		Name:  "Garage Dupont",
		Email: "contact@garage-dupont.fr",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var cust struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&cust); err != nil {
		t.Fatalf("decode customer: %v", err)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/documents", token, domain.DocumentCreateRequest{
		Type:       domain.DocumentInvoice,
		CustomerID: cust.Customer.ID,
		Lines: []domain.DocumentLine{
			{Label: "Remplacement ecran", Quantity: 1, UnitPrice: 89.90, VATRate: 20},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create document: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var doc struct {
		Document domain.Document `json:"document"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Document.Number != "FA-1" {
		t.Fatalf("expected number FA-1, got %q", doc.Document.Number)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.Document.ID+"/pdf", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	api.Handler().ServeHTTP(out, req)

	if out.Code != http.StatusOK {
		t.Fatalf("pdf: expected 200, got %d", out.Code)
	}
	if !bytes.HasPrefix(out.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected PDF payload, got %q", pdfPrefix(out.Body.Bytes()))
	}
	if cd := out.Header().Get("Content-Disposition"); !strings.Contains(cd, "FA-1") {
		t.Fatalf("expected document number in filename, got %q", cd)
	}
}

func pdfPrefix(b []byte) []byte {
	if len(b) > 16 {
		return b[:16]
	}
	return b
}

func TestUnknownDocumentTypeIs404(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/settings/documents/receipt", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown type, got %d", rec.Code)
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	staff := login(t, api, "staff", "staff123")
	admin := login(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodPost, "/api/v1/users", staff, map[string]string{
		"username": "newbie", "password": "longenough", "role": "staff",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("staff create user: expected 403, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/users", admin, map[string]string{
		"username": "newbie", "password": "longenough", "role": "staff",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create user: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProductStockEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	csv := "sku,name,purchase_price_with_fees,retail_price,stock_atelier,stock_magasin\n" +
		"STK-1,Batterie,10,25,2,3\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/stocks", strings.NewReader("name\nAtelier\nMagasin\n"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stock import: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/imports/products?mode=additive", strings.NewReader(csv))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", api.generateCSRFToken())
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("product import: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	list := doJSON(t, api, http.MethodGet, "/api/v1/products", token, nil)
	var listing struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(list.Body).Decode(&listing); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	var id string
	for _, p := range listing.Products {
		if p.SKU == "STK-1" {
			id = p.ID
		}
	}
	if id == "" {
		t.Fatalf("imported product not found")
	}

	out := doJSON(t, api, http.MethodGet, fmt.Sprintf("/api/v1/products/%s/stock", id), token, nil)
	if out.Code != http.StatusOK {
		t.Fatalf("stock: expected 200, got %d (body: %s)", out.Code, out.Body.String())
	}
	var stock domain.ProductStock
	if err := json.NewDecoder(out.Body).Decode(&stock); err != nil {
		t.Fatalf("decode stock: %v", err)
	}
	if stock.Total != 5 {
		t.Fatalf("expected total 5, got %d", stock.Total)
	}
}
