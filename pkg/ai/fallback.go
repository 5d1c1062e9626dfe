package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// FallbackService routes extraction to the local model first and falls back
// to the hosted one only when the local model cannot be reached. Output
// errors from the primary are returned as-is.
type FallbackService struct {
	primary   ReceiptExtractor
	secondary ReceiptExtractor
	logger    *zap.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary, secondary ReceiptExtractor, logger *zap.Logger) *FallbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
		logger:    logger.Named("ai"),
	}
}

// isConnectionError reports whether the primary could not be reached at
// all. Timeouts and TLS failures are not connection errors: the model was
// reachable, or the failure would repeat against any endpoint.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENETUNREACH, syscall.EHOSTUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

func (f *FallbackService) ExtractReceipts(ctx context.Context, issuer, text string) ([]Transaction, error) {
	if f.primary == nil && f.secondary == nil {
		return nil, fmt.Errorf("no AI provider available for receipt extraction")
	}
	if f.primary == nil {
		return f.secondary.ExtractReceipts(ctx, issuer, text)
	}

	txs, err := f.primary.ExtractReceipts(ctx, issuer, text)
	if err == nil || f.secondary == nil || !isConnectionError(err) || ctx.Err() != nil {
		return txs, err
	}

	f.logger.Warn("primary model unreachable, falling back", zap.Error(err))
	txs, err = f.secondary.ExtractReceipts(ctx, issuer, text)
	if err != nil {
		return nil, fmt.Errorf("fallback extraction failed: %w", err)
	}
	return txs, nil
}
