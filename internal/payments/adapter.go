package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	stdErrors "errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/errors"
	"github.com/inkforge/studio-backend/pkg/logger"
)

// GatewayClient is the thin seam over the gateway SDK, kept narrow so tests
// can stub the network.
type GatewayClient interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	CreateRefund(paymentID string, amountCents int64, notes map[string]interface{}) (map[string]interface{}, error)
}

type razorpayClient struct {
	client *razorpay.Client
}

func (r *razorpayClient) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return r.client.Order.Create(data, nil)
}

func (r *razorpayClient) CreateRefund(paymentID string, amountCents int64, notes map[string]interface{}) (map[string]interface{}, error) {
	return r.client.Payment.Refund(paymentID, int(amountCents), map[string]interface{}{"notes": notes}, nil)
}

// AdapterParams groups dependencies for the payment gateway adapter.
type AdapterParams struct {
	Config config.RazorpayConfig
	Logger *logger.Logger
	// Client overrides the real SDK client; tests only.
	Client GatewayClient
}

// Adapter creates payment sessions and verifies callback authenticity.
type Adapter struct {
	client    GatewayClient
	keyID     string
	secret    string
	allowDemo bool
	logg      *logger.Logger
}

// NewAdapter builds a gateway adapter from credentials.
func NewAdapter(params AdapterParams) (*Adapter, error) {
	if params.Config.KeyID == "" || params.Config.KeySecret == "" {
		return nil, errors.New(errors.CodeConfig, "gateway key id and secret are required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}

	client := params.Client
	if client == nil {
		client = &razorpayClient{client: razorpay.NewClient(params.Config.KeyID, params.Config.KeySecret)}
	}

	return &Adapter{
		client:    client,
		keyID:     params.Config.KeyID,
		secret:    params.Config.KeySecret,
		allowDemo: params.Config.AllowDemo,
		logg:      params.Logger,
	}, nil
}

// Session is the client-facing payment payload. It carries the publishable
// key only; the secret never leaves the server.
type Session struct {
	GatewayOrderID string `json:"session_id"`
	AmountCents    int64  `json:"amount"`
	Currency       string `json:"currency"`
	PublishableKey string `json:"publishable_key"`
}

// CreateSession registers a payment intent for the order total with the
// gateway. Amounts are minor currency units throughout.
func (a *Adapter) CreateSession(ctx context.Context, order *models.Order) (*Session, error) {
	if order == nil {
		return nil, errors.New(errors.CodeValidation, "order is required")
	}
	if order.PriceBreakdown.TotalCents <= 0 {
		return nil, errors.New(errors.CodeValidation, "order total must be positive")
	}

	data := map[string]interface{}{
		"amount":   order.PriceBreakdown.TotalCents,
		"currency": order.Currency.String(),
		"receipt":  order.OrderNumber,
		"notes": map[string]interface{}{
			"order_number":     order.OrderNumber,
			"discount_applied": order.DiscountCents > 0,
			"design_order":     order.DesignOrderID != nil,
			"express_checkout": order.IsExpressCheckout,
		},
	}

	resp, err := a.client.CreateOrder(data)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "creating gateway order")
	}
	gatewayOrderID, _ := resp["id"].(string)
	if gatewayOrderID == "" {
		return nil, errors.New(errors.CodeDependency, "gateway order response missing id")
	}

	a.logg.Info(a.logg.WithOrderNumber(ctx, order.OrderNumber), "gateway payment session created")

	return &Session{
		GatewayOrderID: gatewayOrderID,
		AmountCents:    order.PriceBreakdown.TotalCents,
		Currency:       order.Currency.String(),
		PublishableKey: a.keyID,
	}, nil
}

// VerifyInput carries the callback fields checked against the shared secret.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	// Demo requests the non-production bypass; refused unless the deployment
	// explicitly allows it.
	Demo bool
}

// VerifySignature recomputes HMAC-SHA256 over "gatewayOrderId|paymentId" and
// compares it to the provided signature in constant time. A mismatch is
// terminal for the callback attempt and never reveals the expected value.
func (a *Adapter) VerifySignature(in VerifyInput) error {
	if in.Demo {
		if !a.allowDemo {
			return errors.New(errors.CodeSignature, "demo payments are not enabled")
		}
		return nil
	}
	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return errors.New(errors.CodeValidation, "gateway order id, payment id, and signature are required")
	}

	mac := hmac.New(sha256.New, []byte(a.secret))
	fmt.Fprintf(mac, "%s|%s", in.GatewayOrderID, in.GatewayPaymentID)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(in.Signature)) {
		return errors.New(errors.CodeSignature, "payment signature verification failed")
	}
	return nil
}

// Refund issues a (partial) refund for a captured payment and returns the
// gateway refund id.
func (a *Adapter) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64, reason string) (string, error) {
	if gatewayPaymentID == "" {
		return "", errors.New(errors.CodeValidation, "gateway payment id is required")
	}
	if amountCents <= 0 {
		return "", errors.New(errors.CodeValidation, "refund amount must be positive")
	}

	resp, err := a.client.CreateRefund(gatewayPaymentID, amountCents, map[string]interface{}{"reason": reason})
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "creating gateway refund")
	}
	refundID, _ := resp["id"].(string)
	if refundID == "" {
		return "", errors.New(errors.CodeDependency, "gateway refund response missing id")
	}

	a.logg.Info(a.logg.WithField(ctx, "gateway_payment_id", gatewayPaymentID), "gateway refund created")
	return refundID, nil
}
