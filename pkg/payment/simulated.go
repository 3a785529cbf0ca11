package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Test card numbers understood by SimulatedGateway.
const (
	SimCardDeclined       = "4000000000000002"
	SimCardRequiresAction = "4000002500003155"
)

// SimulatedGateway is an in-process provider used for the complypay sandbox
// and for local development without provider credentials. The pix and boleto
// branches wait a fixed latency before answering.
type SimulatedGateway struct {
	latency time.Duration

	mu      sync.Mutex
	intents map[string]IntentRequest // keyed by client secret
}

// NewSimulatedGateway creates a simulated gateway.
func NewSimulatedGateway(latency time.Duration) *SimulatedGateway {
	return &SimulatedGateway{
		latency: latency,
		intents: make(map[string]IntentRequest),
	}
}

func (g *SimulatedGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	id := "sim_pi_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	secret := id + "_secret_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]

	g.mu.Lock()
	g.intents[secret] = req
	g.mu.Unlock()

	return &Intent{ID: id, ClientSecret: secret}, nil
}

func (g *SimulatedGateway) ConfirmPayment(ctx context.Context, clientSecret string, card CardData) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	_, ok := g.intents[clientSecret]
	g.mu.Unlock()
	if !ok {
		return nil, ErrUnknownIntent
	}

	id := IntentIDFromSecret(clientSecret)
	switch strings.ReplaceAll(card.Number, " ", "") {
	case SimCardDeclined:
		return &Confirmation{Status: ConfirmError, ErrorMessage: "card declined"}, nil
	case SimCardRequiresAction:
		return &Confirmation{
			Status:        ConfirmRequiresAction,
			TransactionID: id,
			RedirectURL:   "https://sandbox.complypay.local/3ds/" + id,
		}, nil
	}
	return &Confirmation{Status: ConfirmSucceeded, TransactionID: id}, nil
}

func (g *SimulatedGateway) GenerateInstantTransferPayload(ctx context.Context, req VoucherRequest) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	// BR Code style payload; only the shape matters for the sandbox.
	return fmt.Sprintf("00020126580014br.gov.bcb.pix0136%s5204000053039865406%d.%02d5802BR6009SAO PAULO62070503***6304%04X",
		uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.IntentID)).String(),
		req.AmountMinor/100, req.AmountMinor%100, req.ItemID&0xFFFF), nil
}

func (g *SimulatedGateway) GenerateBankSlipPayload(ctx context.Context, req VoucherRequest) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("23790.%05d 60000.%06d 00000.000000 1 %014d", req.ItemID%100000, time.Now().Unix()%1000000, req.AmountMinor), nil
}

// wait applies the fixed artificial latency, giving up when ctx is cancelled.
func (g *SimulatedGateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IntentIDFromSecret recovers the intent ID from a "<id>_secret_<token>" client secret.
func IntentIDFromSecret(secret string) string {
	if i := strings.Index(secret, "_secret_"); i > 0 {
		return secret[:i]
	}
	return secret
}
