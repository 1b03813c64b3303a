package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/inkforge/studio-backend/internal/designorders"
	"github.com/inkforge/studio-backend/internal/designs"
	"github.com/inkforge/studio-backend/internal/discounts"
	"github.com/inkforge/studio-backend/internal/identity"
	"github.com/inkforge/studio-backend/internal/notifications"
	"github.com/inkforge/studio-backend/internal/orders"
	"github.com/inkforge/studio-backend/internal/payments"
	"github.com/inkforge/studio-backend/internal/pricing"
	"github.com/inkforge/studio-backend/internal/products"
	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/enums"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/types"
)

const testGatewaySecret = "shhh"

// --- stubs ---

type stubTx struct {
	fail error
}

func (s *stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := fn(nil); err != nil {
		return err
	}
	return s.fail
}

type memOrderRepo struct {
	byID map[uuid.UUID]*models.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byID: map[uuid.UUID]*models.Order{}}
}

func (m *memOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return m }

func (m *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	m.byID[order.ID] = order
	return nil
}

func (m *memOrderRepo) Update(ctx context.Context, order *models.Order) error {
	m.byID[order.ID] = order
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return m.byID[id], nil
}

func (m *memOrderRepo) FindByOrderNumber(ctx context.Context, n string) (*models.Order, error) {
	for _, o := range m.byID {
		if o.OrderNumber == n {
			return o, nil
		}
	}
	return nil, nil
}

func (m *memOrderRepo) FindByGatewayOrderID(ctx context.Context, id string) (*models.Order, error) {
	if id == "" {
		return nil, nil
	}
	for _, o := range m.byID {
		if o.GatewayOrderID != nil && *o.GatewayOrderID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (m *memOrderRepo) FindByGatewayPaymentID(ctx context.Context, id string) (*models.Order, error) {
	if id == "" {
		return nil, nil
	}
	for _, o := range m.byID {
		if o.GatewayPaymentID != nil && *o.GatewayPaymentID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (m *memOrderRepo) FindLatestPendingExpress(ctx context.Context, cutoff time.Time) (*models.Order, error) {
	var latest *models.Order
	for _, o := range m.byID {
		if !o.IsExpressCheckout || o.PaymentStatus != enums.PaymentStatusPending || o.CreatedAt.Before(cutoff) {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	return latest, nil
}

func (m *memOrderRepo) FindByGuestSessionToken(ctx context.Context, token string) (*models.Order, error) {
	for _, o := range m.byID {
		if o.GuestSessionToken != nil && *o.GuestSessionToken == token {
			return o, nil
		}
	}
	return nil, nil
}

func (m *memOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (m *memOrderRepo) List(ctx context.Context, query orders.ListQuery) ([]models.Order, error) {
	return nil, nil
}

type memUserRepo struct {
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[uuid.UUID]*models.User{}, byEmail: map[string]*models.User{}}
}

func (m *memUserRepo) WithTx(tx *gorm.DB) identity.Repository { return m }

func (m *memUserRepo) add(user *models.User) {
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user
}

func (m *memUserRepo) Create(ctx context.Context, user *models.User) error {
	if _, taken := m.byEmail[user.Email]; taken {
		return fmt.Errorf(`duplicate key value violates unique constraint "idx_users_email"`)
	}
	user.ID = uuid.New()
	m.add(user)
	return nil
}

func (m *memUserRepo) Update(ctx context.Context, user *models.User) error {
	m.add(user)
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.byID[id], nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.byEmail[email], nil
}

type memProductRepo struct {
	byID map[uuid.UUID]*models.Product
}

func (m *memProductRepo) WithTx(tx *gorm.DB) products.Repository { return m }
func (m *memProductRepo) Create(ctx context.Context, p *models.Product) error {
	m.byID[p.ID] = p
	return nil
}
func (m *memProductRepo) Update(ctx context.Context, p *models.Product) error {
	m.byID[p.ID] = p
	return nil
}
func (m *memProductRepo) ListActive(ctx context.Context) ([]models.Product, error) { return nil, nil }
func (m *memProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return m.byID[id], nil
}

type memDesignRepo struct {
	byID map[uuid.UUID]*models.Design
}

func (m *memDesignRepo) WithTx(tx *gorm.DB) designs.Repository { return m }
func (m *memDesignRepo) Create(ctx context.Context, d *models.Design) error {
	m.byID[d.ID] = d
	return nil
}
func (m *memDesignRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Design, error) {
	return m.byID[id], nil
}
func (m *memDesignRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Design, error) {
	return nil, nil
}

type memDiscountRepo struct {
	byCode     map[string]*models.DiscountCode
	increments map[uuid.UUID]int
}

func newMemDiscountRepo() *memDiscountRepo {
	return &memDiscountRepo{byCode: map[string]*models.DiscountCode{}, increments: map[uuid.UUID]int{}}
}

func (m *memDiscountRepo) WithTx(tx *gorm.DB) discounts.Repository                 { return m }
func (m *memDiscountRepo) Create(ctx context.Context, c *models.DiscountCode) error { return nil }
func (m *memDiscountRepo) Update(ctx context.Context, c *models.DiscountCode) error { return nil }
func (m *memDiscountRepo) List(ctx context.Context) ([]models.DiscountCode, error)  { return nil, nil }
func (m *memDiscountRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCode, error) {
	return nil, nil
}
func (m *memDiscountRepo) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	return m.byCode[code], nil
}
func (m *memDiscountRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	m.increments[id]++
	return nil
}
func (m *memDiscountRepo) AdjustUsage(ctx context.Context, id uuid.UUID, delta int) error {
	return nil
}

type memDesignOrderRepo struct {
	byID map[uuid.UUID]*models.DesignOrder
}

func newMemDesignOrderRepo() *memDesignOrderRepo {
	return &memDesignOrderRepo{byID: map[uuid.UUID]*models.DesignOrder{}}
}

func (m *memDesignOrderRepo) WithTx(tx *gorm.DB) designorders.Repository { return m }
func (m *memDesignOrderRepo) Create(ctx context.Context, d *models.DesignOrder) error {
	d.ID = uuid.New()
	m.byID[d.ID] = d
	return nil
}
func (m *memDesignOrderRepo) Update(ctx context.Context, d *models.DesignOrder) error {
	m.byID[d.ID] = d
	return nil
}
func (m *memDesignOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DesignOrder, error) {
	return m.byID[id], nil
}
func (m *memDesignOrderRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DesignOrder, error) {
	for _, d := range m.byID {
		if d.OrderID == orderID {
			return d, nil
		}
	}
	return nil, nil
}
func (m *memDesignOrderRepo) ListByStatus(ctx context.Context, status enums.PrintingStatus) ([]models.DesignOrder, error) {
	return nil, nil
}

type stubGatewayClient struct {
	orderErr error
	orders   int
}

func (s *stubGatewayClient) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	s.orders++
	return map[string]interface{}{"id": fmt.Sprintf("order_gw_%d", s.orders)}, nil
}

func (s *stubGatewayClient) CreateRefund(paymentID string, amountCents int64, notes map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"id": "rfnd_1"}, nil
}

type stubMailer struct {
	sent []string
	fail error
}

func (s *stubMailer) Send(to, subject, htmlBody string) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, to)
	return nil
}

type stubChallans struct {
	fail error
	urls []string
}

func (s *stubChallans) Generate(ctx context.Context, order *models.Order, designOrder *models.DesignOrder) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	url := "/challans/challan_" + order.OrderNumber + ".xlsx"
	s.urls = append(s.urls, url)
	return url, nil
}

type stubGuard struct {
	denied   bool
	keys     []string
	released []string
}

func (s *stubGuard) AcquireOnce(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return !s.denied, nil
}

func (s *stubGuard) Release(ctx context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

// --- fixture ---

type fixture struct {
	svc          *Service
	orderRepo    *memOrderRepo
	userRepo     *memUserRepo
	productRepo  *memProductRepo
	designRepo   *memDesignRepo
	discountRepo *memDiscountRepo
	designOrders *memDesignOrderRepo
	gatewayStub  *stubGatewayClient
	mailer       *stubMailer
	challans     *stubChallans
	guard        *stubGuard
}

func newFixture(t *testing.T) *fixture {
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

	f := &fixture{
		orderRepo:    newMemOrderRepo(),
		userRepo:     newMemUserRepo(),
		productRepo:  &memProductRepo{byID: map[uuid.UUID]*models.Product{}},
		designRepo:   &memDesignRepo{byID: map[uuid.UUID]*models.Design{}},
		discountRepo: newMemDiscountRepo(),
		designOrders: newMemDesignOrderRepo(),
		gatewayStub:  &stubGatewayClient{},
		mailer:       &stubMailer{},
		challans:     &stubChallans{},
		guard:        &stubGuard{},
	}

	ledger, err := discounts.NewService(discounts.ServiceParams{Repo: f.discountRepo, Logger: logg})
	if err != nil {
		t.Fatalf("discounts.NewService: %v", err)
	}
	linker, err := designorders.NewService(designorders.ServiceParams{Repo: f.designOrders, Logger: logg})
	if err != nil {
		t.Fatalf("designorders.NewService: %v", err)
	}
	resolver, err := identity.NewService(identity.ServiceParams{Repo: f.userRepo, Logger: logg})
	if err != nil {
		t.Fatalf("identity.NewService: %v", err)
	}
	assembler, err := orders.NewAssembler(orders.AssemblerParams{
		Repo:      f.orderRepo,
		Products:  f.productRepo,
		Designs:   f.designRepo,
		Discounts: ledger,
		Linker:    linker,
		Engine:    engine,
		Pricing:   pricingCfg,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	gateway, err := payments.NewAdapter(payments.AdapterParams{
		Config: config.RazorpayConfig{KeyID: "rzp_test_key", KeySecret: testGatewaySecret},
		Logger: logg,
		Client: f.gatewayStub,
	})
	if err != nil {
		t.Fatalf("payments.NewAdapter: %v", err)
	}
	notifier, err := notifications.NewService(notifications.ServiceParams{Sender: f.mailer, Logger: logg})
	if err != nil {
		t.Fatalf("notifications.NewService: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Tx:        &stubTx{},
		Resolver:  resolver,
		Assembler: assembler,
		Orders:    f.orderRepo,
		Users:     f.userRepo,
		Gateway:   gateway,
		Discounts: ledger,
		Linker:    linker,
		Notifier:  notifier,
		Challans:  f.challans,
		Guard:     f.guard,
		Logger:    logg,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedProduct() *models.Product {
	product := &models.Product{ID: uuid.New(), Name: "Classic Tee", UnitPriceCents: 50000, Active: true}
	f.productRepo.byID[product.ID] = product
	return product
}

func (f *fixture) seedUser() *models.User {
	user := &models.User{ID: uuid.New(), Name: "Asha", Email: "asha@example.com", Role: enums.UserRoleCustomer}
	f.userRepo.add(user)
	return user
}

func (f *fixture) seedDesign(userID uuid.UUID) *models.Design {
	design := &models.Design{
		ID:     uuid.New(),
		UserID: userID,
		Title:  "Dragon Back",
		Elements: []models.DesignElement{
			{Kind: enums.DesignElementKindText, Content: "RIDE"},
		},
	}
	f.designRepo.byID[design.ID] = design
	return design
}

func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testGatewaySecret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

func testAddress() types.Address {
	return types.Address{Line1: "12 MG Road", City: "Bengaluru", State: "KA", PostalCode: "560001", Country: "IN"}
}

// --- checkout ---

func TestCheckoutAuthenticated(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser()
	product := f.seedProduct()

	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:          &user.ID,
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if result.Session == nil || result.Session.GatewayOrderID == "" {
		t.Fatal("missing payment session")
	}
	if result.Order.GatewayOrderID == nil || *result.Order.GatewayOrderID != result.Session.GatewayOrderID {
		t.Fatal("gateway order id not persisted")
	}
	if result.Session.PublishableKey != "rzp_test_key" {
		t.Fatalf("publishable key = %s", result.Session.PublishableKey)
	}
	if result.UserType != identity.UserTypeRegular {
		t.Fatalf("userType = %s", result.UserType)
	}
	if result.GuestSession != nil {
		t.Fatal("authenticated checkout must not mint a guest session")
	}
}

func TestExpressCheckoutNewGuest(t *testing.T) {
	f := newFixture(t)
	product := f.seedProduct()

	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Guest:           &identity.GuestInfo{Name: "Guest", Email: "a@x.com"},
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodExpress,
		ShippingAddress: testAddress(),
		Express:         true,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if !result.IsGuestOrder {
		t.Fatal("expected guest order")
	}
	if result.IsExistingUserExpressCheckout {
		t.Fatal("new guest is not an existing-user express checkout")
	}
	if result.GuestSession == nil || result.GuestSession.Token == "" {
		t.Fatal("expected a guest session")
	}
	if !result.GuestSession.CanClaimAccount {
		t.Fatal("new guest should be able to claim the account")
	}
	if result.Order.GuestSessionToken == nil {
		t.Fatal("guest session not persisted on order")
	}
}

func TestExpressCheckoutExistingAccount(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser()
	product := f.seedProduct()

	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Guest:           &identity.GuestInfo{Name: user.Name, Email: user.Email},
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodExpress,
		ShippingAddress: testAddress(),
		Express:         true,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if !result.IsExistingUserExpressCheckout {
		t.Fatal("expected existing-user express checkout")
	}
	if result.UserAccountMessage == "" {
		t.Fatal("expected advisory login message")
	}
	if result.GuestSession != nil {
		t.Fatal("existing accounts get no guest session")
	}
	if result.Order.UserID != user.ID {
		t.Fatal("order not attached to the existing account")
	}
	if len(f.userRepo.byID) != 1 {
		t.Fatal("no duplicate user may be created")
	}
}

func TestCheckoutGatewayFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser()
	product := f.seedProduct()
	f.gatewayStub.orderErr = fmt.Errorf("gateway down")

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:          &user.ID,
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeDependency {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
	// The committed order survives for a later session retry.
	if len(f.orderRepo.byID) != 1 {
		t.Fatalf("orders = %d, want 1", len(f.orderRepo.byID))
	}
}

// --- verify ---

func (f *fixture) paidSetup(t *testing.T) (*models.Order, string, string) {
	t.Helper()

	user := f.seedUser()
	product := f.seedProduct()
	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:          &user.ID,
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	return result.Order, *result.Order.GatewayOrderID, "pay_123"
}

func TestVerifyHappyPath(t *testing.T) {
	f := newFixture(t)
	order, gatewayOrderID, paymentID := f.paidSetup(t)

	result, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        sign(gatewayOrderID, paymentID),
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if result.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s", result.Order.PaymentStatus)
	}
	if result.Order.Status != enums.OrderStatusProcessing {
		t.Fatalf("status = %s", result.Order.Status)
	}
	if result.Order.PaidAt == nil {
		t.Fatal("paid_at not set")
	}
	if result.Order.GatewayPaymentID == nil || *result.Order.GatewayPaymentID != paymentID {
		t.Fatal("payment id not persisted")
	}
	if !result.EmailSent {
		t.Fatal("email flag should be true")
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != "asha@example.com" {
		t.Fatalf("mail sent to %v", f.mailer.sent)
	}
	stored, _ := f.orderRepo.FindByID(context.Background(), order.ID)
	if stored.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatal("paid state not persisted")
	}
	if stored.AmountPaidCents != stored.PriceBreakdown.TotalCents {
		t.Fatalf("amount paid = %d, breakdown total = %d", stored.AmountPaidCents, stored.PriceBreakdown.TotalCents)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	f := newFixture(t)
	_, gatewayOrderID, paymentID := f.paidSetup(t)

	valid := sign(gatewayOrderID, paymentID)
	tampered := []byte(valid)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        string(tampered),
	})
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeSignature {
		t.Fatalf("expected SIGNATURE_MISMATCH, got %v", err)
	}

	// Order unchanged and retryable.
	stored, _ := f.orderRepo.FindByGatewayOrderID(context.Background(), gatewayOrderID)
	if stored.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s, want pending", stored.PaymentStatus)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatal("no email on failed verification")
	}
}

func TestVerifyRejectedSignatureFreesGuard(t *testing.T) {
	f := newFixture(t)
	_, gatewayOrderID, paymentID := f.paidSetup(t)

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        "not-a-signature",
	})
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeSignature {
		t.Fatalf("expected SIGNATURE_MISMATCH, got %v", err)
	}

	// The idempotency slot must be freed on rejection; a correct
	// resubmission may not wait out the guard TTL.
	if len(f.guard.released) != 1 {
		t.Fatalf("guard releases = %d, want 1", len(f.guard.released))
	}
	if f.guard.released[0] != f.guard.keys[0] {
		t.Fatalf("released %q, acquired %q", f.guard.released[0], f.guard.keys[0])
	}

	retried, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        sign(gatewayOrderID, paymentID),
	})
	if err != nil {
		t.Fatalf("resubmitted Verify: %v", err)
	}
	if retried.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want paid", retried.Order.PaymentStatus)
	}
}

func TestVerifyIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	_, gatewayOrderID, paymentID := f.paidSetup(t)

	in := VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        sign(gatewayOrderID, paymentID),
	}
	if _, err := f.svc.Verify(context.Background(), in); err != nil {
		t.Fatalf("first Verify: %v", err)
	}

	replay, err := f.svc.Verify(context.Background(), in)
	if err != nil {
		t.Fatalf("replay Verify: %v", err)
	}
	if !replay.AlreadyVerified {
		t.Fatal("replay must be flagged AlreadyVerified")
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("mails = %d, want 1", len(f.mailer.sent))
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_missing",
		GatewayPaymentID: "pay_123",
		Signature:        sign("order_missing", "pay_123"),
	})
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestVerifyExpressFallback(t *testing.T) {
	f := newFixture(t)
	product := f.seedProduct()

	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		Guest:           &identity.GuestInfo{Name: "Guest", Email: "a@x.com"},
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingMethod:  enums.ShippingMethodExpress,
		ShippingAddress: testAddress(),
		Express:         true,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	// Simulate a callback that echoed neither gateway reference: wipe the
	// stored gateway order id so neither direct lookup matches.
	result.Order.GatewayOrderID = nil
	_ = f.orderRepo.Update(context.Background(), result.Order)

	// Demo bypass is disabled in this fixture, so the signature check fires
	// after the lookup. A SIGNATURE_MISMATCH proves the fallback located the
	// order; NOT_FOUND would mean the fallback chain broke.
	_, err = f.svc.Verify(context.Background(), VerifyInput{
		GatewayPaymentID: "pay_777",
		Signature:        "ignored",
		Demo:             true,
	})
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeSignature {
		t.Fatalf("expected SIGNATURE_MISMATCH after fallback lookup, got %v", err)
	}
}

func TestVerifyExpiredDiscountZeroedOut(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser()
	product := f.seedProduct()

	code := &models.DiscountCode{
		ID:        uuid.New(),
		Code:      "LAUNCH10",
		Type:      enums.DiscountTypePercentage,
		Percent:   10,
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Minute),
		Active:    true,
	}
	f.discountRepo.byCode["LAUNCH10"] = code

	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:          &user.ID,
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		DiscountCode:    "LAUNCH10",
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Order.DiscountCents != 5000 {
		t.Fatalf("discount = %d, want 5000", result.Order.DiscountCents)
	}
	discountedTotal := result.Order.PriceBreakdown.TotalCents

	// The code expires before the callback lands.
	code.ExpiresAt = time.Now().Add(-time.Second)

	gatewayOrderID := *result.Order.GatewayOrderID
	verified, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        sign(gatewayOrderID, "pay_123"),
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !verified.DiscountZeroed {
		t.Fatal("discount should be zeroed")
	}
	if verified.Order.DiscountCents != 0 {
		t.Fatalf("discount = %d, want 0", verified.Order.DiscountCents)
	}
	if verified.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatal("payment must still succeed")
	}
	if err := verified.Order.PriceBreakdown.Validate(); err != nil {
		t.Fatalf("breakdown invariant: %v", err)
	}
	// The gateway collected the discounted session amount; the recomputed
	// breakdown diverges from it and the paid figure stays on record.
	if verified.Order.AmountPaidCents != discountedTotal {
		t.Fatalf("amount paid = %d, want %d", verified.Order.AmountPaidCents, discountedTotal)
	}
	if verified.Order.PriceBreakdown.TotalCents != discountedTotal+5000 {
		t.Fatalf("recomputed total = %d, want %d", verified.Order.PriceBreakdown.TotalCents, discountedTotal+5000)
	}
}

func TestVerifyDesignOrderReconciledAndChallan(t *testing.T) {
	f := newFixture(t)
	user := f.seedUser()
	design := f.seedDesign(user.ID)

	result, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID: &user.ID,
		Design: &orders.DesignInput{
			DesignID:       design.ID,
			SizeQuantities: types.SizeQuantities{"M": 2},
		},
		ShippingMethod:  enums.ShippingMethodStandard,
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !result.DesignOrderLinked {
		t.Fatal("design order should be linked")
	}

	gatewayOrderID := *result.Order.GatewayOrderID
	verified, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: "pay_123",
		Signature:        sign(gatewayOrderID, "pay_123"),
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !verified.ChallanGenerated || verified.ChallanURL == "" {
		t.Fatal("challan should be generated for design orders")
	}

	designOrder, _ := f.designOrders.FindByOrderID(context.Background(), verified.Order.ID)
	if designOrder.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("design order payment status = %s", designOrder.PaymentStatus)
	}
	if designOrder.Status != enums.PrintingStatusProcessing {
		t.Fatalf("design order status = %s", designOrder.Status)
	}
	if designOrder.ChallanURL == nil {
		t.Fatal("challan url not written to design order")
	}
}

func TestVerifySideEffectFailureDoesNotFailVerification(t *testing.T) {
	f := newFixture(t)
	_, gatewayOrderID, paymentID := f.paidSetup(t)
	f.mailer.fail = fmt.Errorf("smtp down")

	result, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        sign(gatewayOrderID, paymentID),
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.EmailSent {
		t.Fatal("email flag must be false when sending fails")
	}
	if result.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatal("verification must succeed despite side effect failure")
	}
}

// --- refund ---

func TestRefund(t *testing.T) {
	f := newFixture(t)
	_, gatewayOrderID, paymentID := f.paidSetup(t)

	verified, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        sign(gatewayOrderID, paymentID),
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	order := verified.Order

	refunded, err := f.svc.Refund(context.Background(), order.ID, order.PriceBreakdown.TotalCents, "customer request")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunded.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("payment status = %s", refunded.PaymentStatus)
	}
}

func TestRefundRejectsExcessAndUnpaid(t *testing.T) {
	f := newFixture(t)
	order, gatewayOrderID, paymentID := f.paidSetup(t)

	// Not yet paid.
	_, err := f.svc.Refund(context.Background(), order.ID, 100, "")
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for unpaid order, got %v", err)
	}

	if _, err := f.svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        sign(gatewayOrderID, paymentID),
	}); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Over the captured total.
	_, err = f.svc.Refund(context.Background(), order.ID, order.PriceBreakdown.TotalCents+1, "")
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for excess refund, got %v", err)
	}
}
