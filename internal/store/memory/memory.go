// Package memory provides an in-memory Repository used for tests and for
// running the backend without PostgreSQL. It intentionally does NOT enforce
// SKU or serial uniqueness: the import engine is responsible for detecting
// pre-existing duplicates, so the store must be able to hold them.
package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	products    map[string]domain.Product
	categories  map[string]domain.Category
	variants    map[string]domain.Variant
	stocks      map[string]domain.Stock
	stockGroups map[string]domain.StockGroup
	allocations map[string]map[string]int // productID -> stockID -> qty
	customers   map[string]domain.Customer
	settings    map[domain.DocumentType]domain.DocumentSettings
	documents   map[string]domain.Document
	users       map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:    map[string]domain.Product{},
		categories:  map[string]domain.Category{},
		variants:    map[string]domain.Variant{},
		stocks:      map[string]domain.Stock{},
		stockGroups: map[string]domain.StockGroup{},
		allocations: map[string]map[string]int{},
		customers:   map[string]domain.Customer{},
		settings:    map[domain.DocumentType]domain.DocumentSettings{},
		documents:   map[string]domain.Document{},
		users:       map[string]domain.UserAccount{},
	}
}

// NewSeeded returns a store pre-loaded with dev accounts. Credentials come
// from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD, with hardcoded dev
// defaults and a warning when unset. Production deployments use PostgreSQL
// and never hit this path.
func NewSeeded() *Store {
	s := New()
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		s.users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ---- products ----

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindProductsBySKU(ctx context.Context, sku string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := domain.SKUKey(sku)
	var out []domain.Product
	for _, p := range s.products {
		if domain.SKUKey(p.SKU) == key {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindProductsBySerial(ctx context.Context, serial string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := domain.SerialKey(serial)
	var out []domain.Product
	for _, p := range s.products {
		if p.SerialNumber != "" && domain.SerialKey(p.SerialNumber) == key {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		return nil, store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	delete(s.allocations, id)
	return nil
}

// ---- categories ----

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindCategory(ctx context.Context, typ, brand, model string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := domain.CategoryKey(typ, brand, model)
	for _, c := range s.categories {
		if c.Key() == key {
			out := c
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		return nil, store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Key() == category.Key() {
			return nil, store.ErrConflict
		}
	}
	s.categories[category.ID] = category
	return &category, nil
}

// ---- variants ----

func (s *Store) ListVariants(ctx context.Context) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Variant, 0, len(s.variants))
	for _, v := range s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindVariant(ctx context.Context, color, grade string, capacity int, simType string) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := domain.VariantKey(color, grade, capacity, simType)
	for _, v := range s.variants {
		if v.Key() == key {
			out := v
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error) {
	if variant.ID == "" {
		return nil, store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.variants {
		if v.Key() == variant.Key() {
			return nil, store.ErrConflict
		}
	}
	s.variants[variant.ID] = variant
	return &variant, nil
}

// ---- stocks ----

func (s *Store) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateStock(ctx context.Context, stock domain.Stock) (*domain.Stock, error) {
	if stock.ID == "" || strings.TrimSpace(stock.Name) == "" {
		return nil, store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stocks {
		if st.Key() == stock.Key() {
			return nil, store.ErrConflict
		}
	}
	s.stocks[stock.ID] = stock
	return &stock, nil
}

func (s *Store) ListStockGroups(ctx context.Context) ([]domain.StockGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StockGroup, 0, len(s.stockGroups))
	for _, g := range s.stockGroups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetStockGroupByID(ctx context.Context, id string) (*domain.StockGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.stockGroups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *Store) FindStockGroupByName(ctx context.Context, name string) (*domain.StockGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := domain.StockNameKey(name)
	for _, g := range s.stockGroups {
		if domain.StockNameKey(g.Name) == key {
			out := g
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateStockGroup(ctx context.Context, group domain.StockGroup) (*domain.StockGroup, error) {
	if group.ID == "" || strings.TrimSpace(group.Name) == "" {
		return nil, store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.stockGroups {
		if domain.StockNameKey(g.Name) == domain.StockNameKey(group.Name) {
			return nil, store.ErrConflict
		}
	}
	s.stockGroups[group.ID] = group
	return &group, nil
}

// ---- allocations ----

func (s *Store) ListAllocationsByProduct(ctx context.Context, productID string) ([]domain.StockAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StockAllocation
	for stockID, qty := range s.allocations[productID] {
		out = append(out, domain.StockAllocation{ProductID: productID, StockID: stockID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockID < out[j].StockID })
	return out, nil
}

func (s *Store) UpsertAllocation(ctx context.Context, alloc domain.StockAllocation) error {
	if alloc.ProductID == "" || alloc.StockID == "" {
		return store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocations[alloc.ProductID] == nil {
		s.allocations[alloc.ProductID] = map[string]int{}
	}
	s.allocations[alloc.ProductID][alloc.StockID] = alloc.Quantity
	return nil
}

func (s *Store) DeleteAllocation(ctx context.Context, productID, stockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allocations[productID][stockID]; !ok {
		return store.ErrNotFound
	}
	delete(s.allocations[productID], stockID)
	return nil
}

func (s *Store) DeleteAllocationsByProduct(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allocations, productID)
	return nil
}

// ---- customers ----

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(email))
	if needle == "" {
		return nil, store.ErrNotFound
	}
	for _, c := range s.customers {
		if strings.ToLower(c.Email) == needle {
			out := c
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindCustomersByName(ctx context.Context, name string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	var out []domain.Customer
	for _, c := range s.customers {
		if strings.ToLower(c.Name) == needle {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

// ---- documents ----

func (s *Store) GetDocumentSettings(ctx context.Context, typ domain.DocumentType) (*domain.DocumentSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.settings[typ]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cfg, nil
}

func (s *Store) UpsertDocumentSettings(ctx context.Context, settings domain.DocumentSettings) error {
	if settings.Type == "" {
		return store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.Type] = settings
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	if doc.ID == "" || doc.Type == "" {
		return nil, store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return nil, store.ErrConflict
	}
	s.documents[doc.ID] = doc
	return &doc, nil
}

func (s *Store) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, typ domain.DocumentType, limit int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, doc := range s.documents {
		if typ != "" && doc.Type != typ {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" {
		return store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Username]; exists {
		return store.ErrConflict
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[username] = u
	return nil
}
