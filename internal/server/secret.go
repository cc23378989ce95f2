package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/portfolio-feed/internal/auth"
	"github.com/sakif/portfolio-feed/internal/repository"
)

// signingKey is the generated token secret, kept next to the data it
// protects so that stored sessions stay valid across restarts.
type signingKey struct {
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"createdAt"`
}

// resolveSecret returns the configured secret, or the persisted generated
// one, generating and saving it on first start.
func resolveSecret(ctx context.Context, configured string, keys repository.Collection[signingKey], logger *slog.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	if stored := keys.Load(ctx); len(stored) > 0 && stored[0].Secret != "" {
		return stored[0].Secret, nil
	}

	secret, err := auth.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	// Without a persisted secret every restart would invalidate every session.
	if err := keys.Save(ctx, []signingKey{{Secret: secret, CreatedAt: time.Now().UTC()}}); err != nil {
		return "", fmt.Errorf("saving token secret: %w", err)
	}
	logger.Warn("TOKEN_SECRET not set; generated one and stored it with the data")
	return secret, nil
}
