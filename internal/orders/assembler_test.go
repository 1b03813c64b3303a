package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/internal/designorders"
	"github.com/inkforge/studio-backend/internal/designs"
	"github.com/inkforge/studio-backend/internal/discounts"
	"github.com/inkforge/studio-backend/internal/pricing"
	"github.com/inkforge/studio-backend/internal/products"
	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/types"
)

type stubOrderRepo struct {
	created   []*models.Order
	updated   []*models.Order
	createErr []error // popped per Create call
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) error {
	if len(s.createErr) > 0 {
		err := s.createErr[0]
		s.createErr = s.createErr[1:]
		if err != nil {
			return err
		}
	}
	order.ID = uuid.New()
	s.created = append(s.created, order)
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order *models.Order) error {
	s.updated = append(s.updated, order)
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) FindByOrderNumber(ctx context.Context, n string) (*models.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) FindByGatewayOrderID(ctx context.Context, id string) (*models.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) FindByGatewayPaymentID(ctx context.Context, id string) (*models.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) FindLatestPendingExpress(ctx context.Context, cutoff time.Time) (*models.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) FindByGuestSessionToken(ctx context.Context, token string) (*models.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) List(ctx context.Context, query ListQuery) ([]models.Order, error) {
	return nil, nil
}

type stubProductRepo struct {
	byID map[uuid.UUID]*models.Product
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) products.Repository { return s }
func (s *stubProductRepo) Create(ctx context.Context, p *models.Product) error {
	s.byID[p.ID] = p
	return nil
}
func (s *stubProductRepo) Update(ctx context.Context, p *models.Product) error {
	s.byID[p.ID] = p
	return nil
}
func (s *stubProductRepo) ListActive(ctx context.Context) ([]models.Product, error) { return nil, nil }
func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.byID[id], nil
}

type stubDesignRepo struct {
	byID map[uuid.UUID]*models.Design
}

func (s *stubDesignRepo) WithTx(tx *gorm.DB) designs.Repository { return s }
func (s *stubDesignRepo) Create(ctx context.Context, d *models.Design) error {
	s.byID[d.ID] = d
	return nil
}
func (s *stubDesignRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	return s.byID[id], nil
}
func (s *stubDesignRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Design, error) {
	return nil, nil
}

type stubDiscountLedgerRepo struct {
	byCode     map[string]*models.DiscountCode
	increments map[uuid.UUID]int
}

func (s *stubDiscountLedgerRepo) WithTx(tx *gorm.DB) discounts.Repository { return s }
func (s *stubDiscountLedgerRepo) Create(ctx context.Context, c *models.DiscountCode) error {
	return nil
}
func (s *stubDiscountLedgerRepo) Update(ctx context.Context, c *models.DiscountCode) error {
	return nil
}
func (s *stubDiscountLedgerRepo) List(ctx context.Context) ([]models.DiscountCode, error) {
	return nil, nil
}
func (s *stubDiscountLedgerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	return nil, nil
}
func (s *stubDiscountLedgerRepo) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	return s.byCode[code], nil
}
func (s *stubDiscountLedgerRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	s.increments[id]++
	return nil
}
func (s *stubDiscountLedgerRepo) AdjustUsage(ctx context.Context, id uuid.UUID, delta int) error {
	return nil
}

type stubDesignOrderRepo struct {
	created   []*models.DesignOrder
	createErr error
}

func (s *stubDesignOrderRepo) WithTx(tx *gorm.DB) designorders.Repository { return s }
func (s *stubDesignOrderRepo) Create(ctx context.Context, d *models.DesignOrder) error {
	if s.createErr != nil {
		return s.createErr
	}
	d.ID = uuid.New()
	s.created = append(s.created, d)
	return nil
}
func (s *stubDesignOrderRepo) Update(ctx context.Context, d *models.DesignOrder) error { return nil }
func (s *stubDesignOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DesignOrder, error) {
	return nil, nil
}
func (s *stubDesignOrderRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DesignOrder, error) {
	return nil, nil
}
func (s *stubDesignOrderRepo) ListByStatus(ctx context.Context, status enums.PrintingStatus) ([]models.DesignOrder, error) {
	return nil, nil
}

type assemblerFixture struct {
	assembler   *Assembler
	orderRepo   *stubOrderRepo
	productRepo *stubProductRepo
	designRepo  *stubDesignRepo
	ledgerRepo  *stubDiscountLedgerRepo
	linkerRepo  *stubDesignOrderRepo
}

func newAssemblerFixture(t *testing.T) *assemblerFixture {
	t.Helper()

	logg := logger.New(logger.Options{Level: zerolog.ErrorLevel, Output: io.Discard})

	pricingCfg := config.PricingConfig{
		Currency:           "INR",
		BasePriceCents:     50000,
		TextElementCents:   2500,
		ImageElementCents:  5000,
		BackPrintCents:     7500,
		SizePremiumsCents:  map[string]int64{"XL": 2000},
		TaxRateBps:         1000,
		MaxQuantityPerSize: 500,
	}
	engine, err := pricing.NewEngine(pricingCfg, config.ShippingConfig{
		StandardCents:      5000,
		ExpressCents:       12000,
		BulkThresholdUnits: 10,
		BulkStepUnits:      10,
		BulkIncrementCents: 2000,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ledgerRepo := &stubDiscountLedgerRepo{
		byCode:     map[string]*models.DiscountCode{},
		increments: map[uuid.UUID]int{},
	}
	ledger, err := discounts.NewService(discounts.ServiceParams{Repo: ledgerRepo, Logger: logg})
	if err != nil {
		t.Fatalf("discounts.NewService: %v", err)
	}

	linkerRepo := &stubDesignOrderRepo{}
	linker, err := designorders.NewService(designorders.ServiceParams{Repo: linkerRepo, Logger: logg})
	if err != nil {
		t.Fatalf("designorders.NewService: %v", err)
	}

	fixture := &assemblerFixture{
		orderRepo:   &stubOrderRepo{},
		productRepo: &stubProductRepo{byID: map[uuid.UUID]*models.Product{}},
		designRepo:  &stubDesignRepo{byID: map[uuid.UUID]*models.Design{}},
		ledgerRepo:  ledgerRepo,
		linkerRepo:  linkerRepo,
	}

	assembler, err := NewAssembler(AssemblerParams{
		Repo:      fixture.orderRepo,
		Products:  fixture.productRepo,
		Designs:   fixture.designRepo,
		Discounts: ledger,
		Linker:    linker,
		Engine:    engine,
		Pricing:   pricingCfg,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	fixture.assembler = assembler
	return fixture
}

func testAddress() types.Address {
	return types.Address{Line1: "12 MG Road", City: "Bengaluru", State: "KA", PostalCode: "560001", Country: "IN"}
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Name: "Asha", Email: "asha@example.com", Role: enums.UserRoleCustomer}
}

func TestAssembleCatalogOrder(t *testing.T) {
	f := newAssemblerFixture(t)
	product := &models.Product{ID: uuid.New(), Name: "Classic Tee", UnitPriceCents: 25000, Active: true}
	f.productRepo.byID[product.ID] = product

	result, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User:            testUser(),
		Items:           []ItemInput{{ProductID: product.ID, Color: "black", Size: "M", Quantity: 2}},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	order := result.Order
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("statuses = %s/%s, want pending/pending", order.Status, order.PaymentStatus)
	}
	if order.OrderNumber == "" {
		t.Fatal("order number not generated")
	}
	if len(order.Items) != 1 || order.Items[0].TotalCents != 50000 {
		t.Fatalf("items = %+v", order.Items)
	}
	if err := order.PriceBreakdown.Validate(); err != nil {
		t.Fatalf("breakdown invariant: %v", err)
	}
	// subtotal 50000, tax 5000, shipping 5000
	if order.PriceBreakdown.TotalCents != 60000 {
		t.Fatalf("total = %d, want 60000", order.PriceBreakdown.TotalCents)
	}
}

func TestAssembleRejectsUnknownProduct(t *testing.T) {
	f := newAssemblerFixture(t)

	_, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User:            testUser(),
		Items:           []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if len(f.orderRepo.created) != 0 {
		t.Fatal("no order should be persisted")
	}
}

func TestAssembleAppliesDiscountOnce(t *testing.T) {
	f := newAssemblerFixture(t)
	product := &models.Product{ID: uuid.New(), Name: "Classic Tee", UnitPriceCents: 50000, Active: true}
	f.productRepo.byID[product.ID] = product

	code := &models.DiscountCode{
		ID:        uuid.New(),
		Code:      "LAUNCH10",
		Type:      enums.DiscountTypePercentage,
		Percent:   10,
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
		Active:    true,
	}
	f.ledgerRepo.byCode["LAUNCH10"] = code

	result, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User:            testUser(),
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 2}},
		DiscountCode:    "launch10",
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if result.Order.DiscountCents != 10000 {
		t.Fatalf("discount = %d, want 10000", result.Order.DiscountCents)
	}
	if result.Order.DiscountCode == nil || *result.Order.DiscountCode != "LAUNCH10" {
		t.Fatalf("discount code = %v", result.Order.DiscountCode)
	}
	if got := f.ledgerRepo.increments[code.ID]; got != 1 {
		t.Fatalf("usage increments = %d, want 1", got)
	}
	if err := result.Order.PriceBreakdown.Validate(); err != nil {
		t.Fatalf("breakdown invariant: %v", err)
	}
}

func TestAssembleDesignOrderLinks(t *testing.T) {
	f := newAssemblerFixture(t)
	user := testUser()
	design := &models.Design{
		ID:     uuid.New(),
		UserID: user.ID,
		Title:  "Dragon Back",
		Elements: []models.DesignElement{
			{Kind: enums.DesignElementKindText, Content: "RIDE"},
			{Kind: enums.DesignElementKindImage, URL: "https://cdn/img.png"},
		},
		HasBackPrint: true,
	}
	f.designRepo.byID[design.ID] = design

	result, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User: user,
		Design: &DesignInput{
			DesignID:       design.ID,
			SizeQuantities: types.SizeQuantities{"M": 2, "XL": 1},
			Color:          "navy",
		},
		ShippingMethod:  enums.ShippingMethodExpress,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if !result.DesignOrderLinked || result.DesignOrder == nil {
		t.Fatal("design order should be linked")
	}
	if result.Order.DesignOrderID == nil || *result.Order.DesignOrderID != result.DesignOrder.ID {
		t.Fatal("order does not reference the design order")
	}
	if result.DesignOrder.CustomerEmail != user.Email {
		t.Fatalf("snapshot email = %s", result.DesignOrder.CustomerEmail)
	}
	if result.DesignOrder.TotalQuantity != 3 {
		t.Fatalf("total quantity = %d, want 3", result.DesignOrder.TotalQuantity)
	}
	if len(result.Order.Items) != 1 || result.Order.Items[0].Kind != enums.OrderItemKindDesign {
		t.Fatalf("items = %+v", result.Order.Items)
	}
}

func TestDesignOrderSnapshotSurvivesProfileEdit(t *testing.T) {
	f := newAssemblerFixture(t)
	phone := "+91-98450-00000"
	user := &models.User{ID: uuid.New(), Name: "Asha", Email: "asha@example.com", Phone: &phone, Role: enums.UserRoleCustomer}
	design := &models.Design{ID: uuid.New(), UserID: user.ID, Title: "Plain"}
	f.designRepo.byID[design.ID] = design

	_, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User: user,
		Design: &DesignInput{
			DesignID:       design.ID,
			SizeQuantities: types.SizeQuantities{"M": 1},
		},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	// The print shop works off the snapshot taken at order time; later
	// profile edits must not reach it.
	user.Name = "Asha Rao"
	user.Email = "asha.rao@example.com"
	*user.Phone = "+91-98450-99999"

	if len(f.linkerRepo.created) != 1 {
		t.Fatalf("design orders created = %d, want 1", len(f.linkerRepo.created))
	}
	record := f.linkerRepo.created[0]
	if record.CustomerName != "Asha" {
		t.Fatalf("snapshot name = %q", record.CustomerName)
	}
	if record.CustomerEmail != "asha@example.com" {
		t.Fatalf("snapshot email = %q", record.CustomerEmail)
	}
	if record.CustomerPhone == nil || *record.CustomerPhone != "+91-98450-00000" {
		t.Fatalf("snapshot phone = %v", record.CustomerPhone)
	}
}

func TestAssembleDesignLinkFailureIsNonFatal(t *testing.T) {
	f := newAssemblerFixture(t)
	user := testUser()
	design := &models.Design{ID: uuid.New(), UserID: user.ID, Title: "Plain"}
	f.designRepo.byID[design.ID] = design
	f.linkerRepo.createErr = context.DeadlineExceeded

	result, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User: user,
		Design: &DesignInput{
			DesignID:       design.ID,
			SizeQuantities: types.SizeQuantities{"M": 1},
		},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if result.DesignOrderLinked {
		t.Fatal("link should have failed")
	}
	if result.Order == nil || result.Order.OrderNumber == "" {
		t.Fatal("order must survive a linker failure")
	}
}

func TestAssembleRetriesOrderNumberCollision(t *testing.T) {
	f := newAssemblerFixture(t)
	product := &models.Product{ID: uuid.New(), Name: "Classic Tee", UnitPriceCents: 25000, Active: true}
	f.productRepo.byID[product.ID] = product
	f.orderRepo.createErr = []error{
		duplicateKeyErr{},
		nil,
	}

	result, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User:            testUser(),
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if result.Order.OrderNumber == "" {
		t.Fatal("order number missing after retry")
	}
}

type duplicateKeyErr struct{}

func (duplicateKeyErr) Error() string {
	return `duplicate key value violates unique constraint "idx_orders_order_number"`
}

func TestAssembleValidatesShippingAddress(t *testing.T) {
	f := newAssemblerFixture(t)
	product := &models.Product{ID: uuid.New(), Name: "Classic Tee", UnitPriceCents: 25000, Active: true}
	f.productRepo.byID[product.ID] = product

	_, err := f.assembler.Assemble(context.Background(), AssembleInput{
		User:            testUser(),
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: types.Address{City: "Bengaluru"},
	})
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
