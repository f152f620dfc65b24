/**
 * @description
 * Lookup of per-administrator gateway credentials. Credentials live in the
 * database and are injected into gateway adapters per call; nothing reads
 * provider keys from the process environment.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lodgebook/billing-service/pkg/gateway"
)

var ErrGatewayConfigNotFound = errors.New("gateway config not found")

// GatewayConfig returns the administrator's payment gateway configuration.
func (r *PostgresRepository) GatewayConfig(ctx context.Context, adminID uuid.UUID) (gateway.Config, error) {
	var cfg gateway.Config
	err := r.db.QueryRow(ctx, `
		SELECT provider, key_id, key_secret, shared_account
		FROM admin_gateway_configs
		WHERE admin_id = $1
	`, adminID).Scan(&cfg.Provider, &cfg.KeyID, &cfg.KeySecret, &cfg.Shared)
	if err != nil {
		if err == pgx.ErrNoRows {
			return gateway.Config{}, ErrGatewayConfigNotFound
		}
		return gateway.Config{}, err
	}
	return cfg, nil
}
