// Package chain talks to the chain's JSON-RPC node to verify request
// payments.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds verifier settings.
type Config struct {
	// RPCURL is the JSON-RPC endpoint.
	RPCURL string
	// TreasuryWallet is the expected payment destination. Recorded for
	// operator visibility; destination parsing is not enforced yet.
	TreasuryWallet string
	// HTTPClient overrides the default client; useful in tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// RPCVerifier checks payment transactions against the chain. It implements
// core.PaymentVerifier.
type RPCVerifier struct {
	rpcURL   string
	treasury string
	client   *http.Client
	logger   *slog.Logger
}

// NewRPCVerifier creates an RPCVerifier with the given configuration.
func NewRPCVerifier(cfg Config) *RPCVerifier {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCVerifier{
		rpcURL:   cfg.RPCURL,
		treasury: cfg.TreasuryWallet,
		client:   client,
		logger:   logger.With("component", "verifier"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type accountKey struct {
	Pubkey string `json:"pubkey"`
	Signer bool   `json:"signer"`
}

type getTransactionResult struct {
	Transaction struct {
		Message struct {
			AccountKeys []accountKey `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
	Meta *struct {
		Err any `json:"err"`
	} `json:"meta"`
}

// VerifyPayment looks up txSignature and checks that walletAddress is the
// transaction's fee payer. A missing transaction or a sender mismatch is a
// definitive false with no error; transport failures are errors so callers
// can retry.
func (v *RPCVerifier) VerifyPayment(ctx context.Context, txSignature, walletAddress string) (bool, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []any{
			txSignature,
			map[string]any{
				"encoding":                       "jsonParsed",
				"maxSupportedTransactionVersion": 0,
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.rpcURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("rpc call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("rpc returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Result *getTransactionResult `json:"result"`
		Error  *rpcError             `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return false, fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return false, fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}

	if envelope.Result == nil {
		v.logger.WarnContext(ctx, "payment transaction not found", "tx_signature", txSignature)
		return false, nil
	}

	keys := envelope.Result.Transaction.Message.AccountKeys
	if len(keys) == 0 {
		v.logger.WarnContext(ctx, "payment transaction has no account keys", "tx_signature", txSignature)
		return false, nil
	}

	// The fee payer is always the first account key.
	sender := keys[0].Pubkey
	if sender != walletAddress {
		v.logger.WarnContext(ctx, "payment sender mismatch",
			"tx_signature", txSignature,
			"expected", walletAddress,
			"got", sender,
		)
		return false, nil
	}

	if envelope.Result.Meta != nil && envelope.Result.Meta.Err != nil {
		v.logger.WarnContext(ctx, "payment transaction failed on chain", "tx_signature", txSignature)
		return false, nil
	}

	return true, nil
}
