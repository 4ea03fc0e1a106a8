package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"

	"github.com/flicky/storefront-api/internal/model"
)

var errMissingSignature = errors.New("missing x-signature")

type preferenceCreator interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type paymentFetcher interface {
	Get(ctx context.Context, id int) (*mppayment.Response, error)
}

// MercadoPago collects payments through Checkout Pro preferences. Webhooks
// only carry the payment id, so the payment is fetched back to learn its
// status and external reference.
type MercadoPago struct {
	preferences     preferenceCreator
	payments        paymentFetcher
	webhookSecret   string
	notificationURL string
}

func NewMercadoPago(accessToken, webhookSecret, notificationURL string) (*MercadoPago, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &MercadoPago{
		preferences:     preference.NewClient(cfg),
		payments:        mppayment.NewClient(cfg),
		webhookSecret:   webhookSecret,
		notificationURL: notificationURL,
	}, nil
}

func (m *MercadoPago) Provider() string { return model.ProviderMercadoPago }

func (m *MercadoPago) CreatePayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentIntent, error) {
	amount, _ := req.Amount.Float64()
	pref, err := m.preferences.Create(ctx, preference.Request{
		Items: []preference.ItemRequest{{
			ID:         req.OrderNumber,
			Title:      "Order " + req.OrderNumber,
			Quantity:   1,
			UnitPrice:  amount,
			CurrencyID: strings.ToUpper(req.Currency),
		}},
		ExternalReference: req.OrderNumber,
		NotificationURL:   m.notificationURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	return &model.PaymentIntent{
		Provider:    model.ProviderMercadoPago,
		ExternalID:  pref.ID,
		RedirectURL: pref.InitPoint,
		Amount:      req.Amount,
		Currency:    req.Currency,
	}, nil
}

type mpNotification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (m *MercadoPago) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*model.PaymentNotification, error) {
	var body mpNotification
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if err := m.verify(body.Data.ID, header); err != nil {
		return nil, err
	}
	if body.Type != "payment" {
		return nil, nil
	}

	// The callback is authentic past this point.
	id, err := strconv.Atoi(body.Data.ID)
	if err != nil {
		return nil, &model.FetchError{PaymentID: body.Data.ID, Err: err}
	}
	p, err := m.payments.Get(ctx, id)
	if err != nil {
		return nil, &model.FetchError{PaymentID: body.Data.ID, Err: err}
	}

	status := mpStatus(p.Status)
	return &model.PaymentNotification{
		Provider:          model.ProviderMercadoPago,
		EventID:           fmt.Sprintf("%d:%s", p.ID, p.Status),
		ExternalReference: p.ExternalReference,
		PaymentID:         strconv.Itoa(p.ID),
		Status:            status,
	}, nil
}

// verify checks the x-signature header: an HMAC-SHA256 over
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func (m *MercadoPago) verify(dataID string, header http.Header) error {
	if m.webhookSecret == "" {
		return errors.New("webhook secret not configured")
	}
	sig := header.Get("x-signature")
	if sig == "" {
		return errMissingSignature
	}

	var ts, v1 string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("malformed x-signature %q", sig)
	}

	manifest := mercadoPagoManifest(dataID, header.Get("x-request-id"), ts)
	expected := signHex(m.webhookSecret, manifest)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return errors.New("signature mismatch")
	}
	return nil
}

func mercadoPagoManifest(dataID, requestID, ts string) string {
	return "id:" + strings.ToLower(dataID) + ";request-id:" + requestID + ";ts:" + ts + ";"
}

func signHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func mpStatus(s string) model.PaymentStatus {
	switch s {
	case "approved":
		return model.PaymentSucceeded
	case "rejected", "cancelled":
		return model.PaymentFailed
	case "refunded", "charged_back":
		return model.PaymentRefunded
	default:
		return model.PaymentPending
	}
}
