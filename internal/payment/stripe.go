package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	metadataSessionID = "sessionId"
	metadataProfile   = "parsedResume"

	// backfillScanLimit bounds the checkout listing when hunting for a
	// session whose webhook never arrived.
	backfillScanLimit = 100
)

// StripeConfig holds the checkout product settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string

	// PriceCents is the one-time charge, e.g. 500 for $5.00.
	PriceCents  int64
	ProductName string

	// AppURL is the public base URL the hosted page redirects back to.
	AppURL string
}

// StripeGateway implements Gateway on Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	priceCents    int64
	productName   string
	appURL        string
	logger        *slog.Logger
}

func NewStripeGateway(cfg StripeConfig, logger *slog.Logger) *StripeGateway {
	if logger == nil {
		logger = slog.Default()
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	name := cfg.ProductName
	if name == "" {
		name = "Job Search Report"
	}

	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		priceCents:    cfg.PriceCents,
		productName:   name,
		appURL:        cfg.AppURL,
		logger:        logger,
	}
}

// CreateCheckout opens a one-item checkout. The session ID and compacted
// profile ride along as metadata so the webhook handler can reconstruct
// the session if the stored one is gone.
func (g *StripeGateway) CreateCheckout(ctx context.Context, in CheckoutInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params:        stripe.Params{Context: ctx},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(in.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(g.priceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(g.productName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.appURL + "/results/" + in.SessionID + "?checkout_session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(g.appURL + "/?canceled=true"),
	}
	params.AddMetadata(metadataSessionID, in.SessionID)
	params.AddMetadata(metadataProfile, CompactProfile(in.Profile))

	cs, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	g.logger.Info("Checkout session created",
		slog.String("session_id", in.SessionID),
		slog.String("checkout_session_id", cs.ID),
	)
	return cs.URL, nil
}

// VerifyEvent authenticates the webhook payload against the signing secret
// and extracts a completion event. Only checkout.session.completed is
// handled.
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		return Event{}, fmt.Errorf("%w: %s", ErrEventIgnored, event.Type)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return Event{}, fmt.Errorf("failed to decode checkout session from event: %w", err)
	}

	out := eventFromCheckout(&cs)
	out.ID = event.ID
	return out, nil
}

// LookupCheckout fetches one checkout by ID. Only paid checkouts are
// returned; an unpaid one is treated as not found.
func (g *StripeGateway) LookupCheckout(ctx context.Context, checkoutSessionID string) (Event, error) {
	cs, err := g.api.CheckoutSessions.Get(checkoutSessionID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return Event{}, fmt.Errorf("failed to fetch checkout session: %w", err)
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Event{}, ErrCheckoutNotFound
	}
	return eventFromCheckout(cs), nil
}

// FindCheckoutBySession scans recent checkouts for a paid one whose
// metadata names the given session. Stripe cannot filter on metadata
// server-side, so this walks the most recent page.
func (g *StripeGateway) FindCheckoutBySession(ctx context.Context, sessionID string) (Event, error) {
	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(backfillScanLimit)

	iter := g.api.CheckoutSessions.List(params)
	for iter.Next() {
		cs := iter.CheckoutSession()
		if cs.Metadata[metadataSessionID] != sessionID {
			continue
		}
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			continue
		}
		return eventFromCheckout(cs), nil
	}
	if err := iter.Err(); err != nil {
		return Event{}, fmt.Errorf("failed to list checkout sessions: %w", err)
	}
	return Event{}, ErrCheckoutNotFound
}

// eventFromCheckout maps a checkout object to the provider-agnostic event.
// The checkout's own ID doubles as the event ID when no webhook event is
// involved, which keeps backfilled completions idempotent too.
func eventFromCheckout(cs *stripe.CheckoutSession) Event {
	email := cs.CustomerEmail
	if email == "" && cs.CustomerDetails != nil {
		email = cs.CustomerDetails.Email
	}
	return Event{
		ID:                cs.ID,
		CheckoutSessionID: cs.ID,
		SessionID:         cs.Metadata[metadataSessionID],
		Email:             email,
		Profile:           ExpandProfile(cs.Metadata[metadataProfile]),
	}
}
