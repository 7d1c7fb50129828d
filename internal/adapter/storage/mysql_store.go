package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tradepost/negotiation/internal/core/domain"
)

// MySQLStore implements port.Store over database/sql. Every guarded write
// (status compare-and-swap, reservation mark, stock decrement) is expressed
// as a single conditional UPDATE checked through RowsAffected, so races
// between the buyer's and seller's sessions resolve in the database.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// --- conversations ---

func (m *MySQLStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, IFNULL(product_id, ''), created_at, updated_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func (m *MySQLStore) FindConversation(ctx context.Context, buyerID, sellerID, productID string) (*domain.Conversation, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, IFNULL(product_id, ''), created_at, updated_at
		FROM conversations
		WHERE buyer_id = ? AND seller_id = ? AND product_id <=> ?
		LIMIT 1`, buyerID, sellerID, nullString(productID))
	return scanConversation(row)
}

func (m *MySQLStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO conversations (id, buyer_id, seller_id, product_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.BuyerID, conv.SellerID, nullString(conv.ProductID),
		conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (m *MySQLStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, buyer_id, seller_id, IFNULL(product_id, ''), created_at, updated_at
		FROM conversations
		WHERE buyer_id = ? OR seller_id = ?
		ORDER BY updated_at DESC, created_at DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.BuyerID, &c.SellerID, &c.ProductID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (m *MySQLStore) TouchConversation(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = NOW(6) WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// --- messages ---

func (m *MySQLStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, author_role, offer_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.AuthorRole, nullString(msg.OfferID), msg.Body, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (m *MySQLStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, conversation_id, author_role, IFNULL(offer_id, ''), body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.AuthorRole, &msg.OfferID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// --- offers ---

const offerColumns = `id, conversation_id, IFNULL(product_id, ''), made_by, price,
	IFNULL(note, ''), status, reserved, IFNULL(reserved_quantity, 0), IFNULL(reserved_price, 0), created_at`

func (m *MySQLStore) CreateOffer(ctx context.Context, offer *domain.Offer) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO offers (id, conversation_id, product_id, made_by, price, note, status, reserved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		offer.ID, offer.ConversationID, nullString(offer.ProductID), offer.MadeBy,
		offer.Price, nullString(offer.Note), offer.Status, offer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

func (m *MySQLStore) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+offerColumns+` FROM offers WHERE id = ?`, id)

	var o domain.Offer
	err := row.Scan(&o.ID, &o.ConversationID, &o.ProductID, &o.MadeBy, &o.Price,
		&o.Note, &o.Status, &o.Reserved, &o.ReservedQuantity, &o.ReservedPrice, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query offer: %w", err)
	}
	return &o, nil
}

func (m *MySQLStore) ListOffers(ctx context.Context, conversationID string) ([]domain.Offer, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+offerColumns+` FROM offers
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(&o.ID, &o.ConversationID, &o.ProductID, &o.MadeBy, &o.Price,
			&o.Note, &o.Status, &o.Reserved, &o.ReservedQuantity, &o.ReservedPrice, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (m *MySQLStore) UpdateOfferStatus(ctx context.Context, id string, from, to domain.OfferStatus) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE offers SET status = ? WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update offer status: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLStore) MarkOfferReserved(ctx context.Context, id string, quantity int, price float64) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE offers
		SET reserved = 1, reserved_quantity = ?, reserved_price = ?
		WHERE id = ? AND status = 'accepted' AND reserved = 0`,
		quantity, price, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark offer reserved: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLStore) ClearOfferReservation(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE offers
		SET reserved = 0, reserved_quantity = NULL, reserved_price = NULL
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear offer reservation: %w", err)
	}
	return nil
}

func (m *MySQLStore) SumReservedQuantity(ctx context.Context, productID string) (int, error) {
	var total int
	err := m.db.QueryRowContext(ctx, `
		SELECT IFNULL(SUM(reserved_quantity), 0)
		FROM offers
		WHERE product_id = ? AND reserved = 1 AND status = 'accepted'`, productID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum reserved quantity: %w", err)
	}
	return total, nil
}

func (m *MySQLStore) ListReservations(ctx context.Context, productID string) ([]domain.Reservation, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, IFNULL(reserved_quantity, 0), IFNULL(reserved_price, 0), created_at
		FROM offers
		WHERE product_id = ? AND reserved = 1 AND status = 'accepted'
		ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var list []domain.Reservation
	for rows.Next() {
		var r domain.Reservation
		if err := rows.Scan(&r.OfferID, &r.Quantity, &r.Price, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// --- products ---

func (m *MySQLStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, seller_id, name, unit, price, location, inventory, quantity, created_at, updated_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.SellerID, &p.Name, &p.Unit, &p.Price, &p.Location,
		&p.Inventory, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLStore) GetSellerProfile(ctx context.Context, sellerID string) (*domain.SellerProfile, error) {
	var p domain.SellerProfile
	err := m.db.QueryRowContext(ctx, `
		SELECT id, IFNULL(username, ''), IFNULL(full_name, ''), IFNULL(company_name, '')
		FROM profiles WHERE id = ?`, sellerID,
	).Scan(&p.ID, &p.Username, &p.FullName, &p.CompanyName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// --- orders ---

// CreateOrder inserts the order and decrements available stock in one
// transaction. The decrement runs as "quantity = quantity - N where
// quantity >= N": when no row qualifies the product is overcommitted and
// the whole transaction rolls back with ErrInsufficientInventory.
func (m *MySQLStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, product_id, buyer_id, seller_id, conversation_id, quantity, total_price, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.ProductID, order.BuyerID, order.SellerID,
		nullString(order.ConversationID), order.Quantity, order.TotalPrice,
		order.Currency, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - ?, updated_at = NOW(6)
		WHERE id = ? AND quantity >= ?`,
		order.Quantity, order.ProductID, order.Quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrInsufficientInventory
	}

	return tx.Commit()
}

func scanConversation(row *sql.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.BuyerID, &c.SellerID, &c.ProductID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
