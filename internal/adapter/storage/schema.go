package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id           VARCHAR(36) PRIMARY KEY,
		username     VARCHAR(64)  NULL,
		full_name    VARCHAR(128) NULL,
		company_name VARCHAR(128) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         VARCHAR(36) PRIMARY KEY,
		seller_id  VARCHAR(36)  NOT NULL,
		name       VARCHAR(255) NOT NULL,
		unit       VARCHAR(32)  NOT NULL DEFAULT 'ud',
		price      DOUBLE       NOT NULL,
		location   VARCHAR(255) NOT NULL DEFAULT '',
		inventory  INT          NOT NULL DEFAULT 0,
		quantity   INT          NOT NULL DEFAULT 0,
		created_at DATETIME(6)  NOT NULL,
		updated_at DATETIME(6)  NOT NULL,
		KEY idx_products_seller (seller_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id         VARCHAR(36) PRIMARY KEY,
		buyer_id   VARCHAR(36) NOT NULL,
		seller_id  VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_conversations_buyer (buyer_id),
		KEY idx_conversations_seller (seller_id),
		KEY idx_conversations_triple (buyer_id, seller_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              VARCHAR(36) PRIMARY KEY,
		conversation_id VARCHAR(36) NOT NULL,
		author_role     VARCHAR(6)  NOT NULL,
		offer_id        VARCHAR(26) NULL,
		body            TEXT        NOT NULL,
		created_at      DATETIME(6) NOT NULL,
		KEY idx_messages_conversation (conversation_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS offers (
		id                VARCHAR(26) PRIMARY KEY,
		conversation_id   VARCHAR(36) NOT NULL,
		product_id        VARCHAR(36) NULL,
		made_by           VARCHAR(6)  NOT NULL,
		price             DOUBLE      NOT NULL,
		note              TEXT        NULL,
		status            VARCHAR(9)  NOT NULL DEFAULT 'pending',
		reserved          TINYINT(1)  NOT NULL DEFAULT 0,
		reserved_quantity INT         NULL,
		reserved_price    DOUBLE      NULL,
		created_at        DATETIME(6) NOT NULL,
		KEY idx_offers_conversation (conversation_id, created_at),
		KEY idx_offers_product (product_id, reserved, status)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id              VARCHAR(26) PRIMARY KEY,
		product_id      VARCHAR(36) NOT NULL,
		buyer_id        VARCHAR(36) NOT NULL,
		seller_id       VARCHAR(36) NOT NULL,
		conversation_id VARCHAR(36) NULL,
		quantity        INT         NOT NULL,
		total_price     DOUBLE      NOT NULL,
		currency        CHAR(3)     NOT NULL DEFAULT 'EUR',
		created_at      DATETIME(6) NOT NULL,
		KEY idx_orders_product (product_id)
	)`,
}

// EnsureSchema creates the negotiation tables when they do not exist yet.
func (m *MySQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
