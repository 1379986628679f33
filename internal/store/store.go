package store

import (
	"context"
	"errors"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

// Repository is the datastore surface consumed by the services and the
// import reconciliation engine. The engine never assumes uniqueness of
// natural keys: lookups by SKU or serial return every match so pre-existing
// duplicates can be detected and the run aborted.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	FindProductsBySKU(ctx context.Context, sku string) ([]domain.Product, error)
	FindProductsBySerial(ctx context.Context, serial string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	FindCategory(ctx context.Context, typ, brand, model string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)

	ListVariants(ctx context.Context) ([]domain.Variant, error)
	FindVariant(ctx context.Context, color, grade string, capacity int, simType string) (*domain.Variant, error)
	CreateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error)

	ListStocks(ctx context.Context) ([]domain.Stock, error)
	CreateStock(ctx context.Context, stock domain.Stock) (*domain.Stock, error)
	ListStockGroups(ctx context.Context) ([]domain.StockGroup, error)
	GetStockGroupByID(ctx context.Context, id string) (*domain.StockGroup, error)
	FindStockGroupByName(ctx context.Context, name string) (*domain.StockGroup, error)
	CreateStockGroup(ctx context.Context, group domain.StockGroup) (*domain.StockGroup, error)

	ListAllocationsByProduct(ctx context.Context, productID string) ([]domain.StockAllocation, error)
	UpsertAllocation(ctx context.Context, alloc domain.StockAllocation) error
	DeleteAllocation(ctx context.Context, productID, stockID string) error
	DeleteAllocationsByProduct(ctx context.Context, productID string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	FindCustomersByName(ctx context.Context, name string) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	GetDocumentSettings(ctx context.Context, typ domain.DocumentType) (*domain.DocumentSettings, error)
	UpsertDocumentSettings(ctx context.Context, settings domain.DocumentSettings) error
	CreateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error)
	GetDocumentByID(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, typ domain.DocumentType, limit int) ([]domain.Document, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
