package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
)

const (
	testBuyerID   = "buyer-1"
	testSellerID  = "seller-1"
	testProductID = "prod-1"
	testConvID    = "conv-1"
)

type offerFixture struct {
	store  *mockStore
	feed   *mockFeed
	offers *OfferService
}

func newOfferFixture(stock int) *offerFixture {
	store := newMockStore()
	now := time.Now().UTC()
	store.conversations[testConvID] = domain.Conversation{
		ID:        testConvID,
		BuyerID:   testBuyerID,
		SellerID:  testSellerID,
		ProductID: testProductID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.products[testProductID] = domain.Product{
		ID:        testProductID,
		SellerID:  testSellerID,
		Name:      "reclaimed oak beams",
		Unit:      "ud",
		Price:     80,
		Inventory: stock,
		Quantity:  stock,
	}

	feed := &mockFeed{}
	logger := zap.NewNop()
	orders := NewOrderService(store, logger)
	return &offerFixture{
		store:  store,
		feed:   feed,
		offers: NewOfferService(store, feed, orders, logger),
	}
}

func (f *offerFixture) pendingOffer(t *testing.T, madeBy string, price float64) *domain.Offer {
	t.Helper()
	offer, err := f.offers.Create(context.Background(), testConvID, madeBy, price, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return offer
}

func TestCreateOffer_RoundTrip(t *testing.T) {
	f := newOfferFixture(10)

	offer, err := f.offers.Create(context.Background(), testConvID, testBuyerID, 100, "test")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := f.store.GetOffer(context.Background(), offer.ID)
	if err != nil {
		t.Fatalf("GetOffer failed: %v", err)
	}
	if got == nil {
		t.Fatal("offer not persisted")
	}
	if got.Status != domain.OfferStatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.Price != 100 {
		t.Errorf("expected price 100, got %v", got.Price)
	}
	if got.Note != "test" {
		t.Errorf("expected note 'test', got %q", got.Note)
	}
	if got.MadeBy != domain.RoleBuyer {
		t.Errorf("expected made_by buyer, got %s", got.MadeBy)
	}
	if got.ProductID != testProductID {
		t.Errorf("expected product resolved from conversation, got %q", got.ProductID)
	}

	if n := len(f.feed.published(domain.EventOfferInsert)); n != 1 {
		t.Errorf("expected 1 offer-insert event, got %d", n)
	}
	// A companion message describing the offer lands in the thread.
	msgs, _ := f.store.ListMessages(context.Background(), testConvID)
	if len(msgs) != 1 || msgs[0].OfferID != offer.ID {
		t.Errorf("expected one companion message bound to the offer, got %+v", msgs)
	}
}

func TestCreateOffer_NonPositivePrice(t *testing.T) {
	f := newOfferFixture(10)

	for _, price := range []float64{0, -5} {
		_, err := f.offers.Create(context.Background(), testConvID, testBuyerID, price, "")
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("price %v: expected ErrValidation, got %v", price, err)
		}
	}
}

func TestCreateOffer_ConversationMissing(t *testing.T) {
	f := newOfferFixture(10)

	_, err := f.offers.Create(context.Background(), "missing-conv", testBuyerID, 50, "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateOffer_NotParticipant(t *testing.T) {
	f := newOfferFixture(10)

	_, err := f.offers.Create(context.Background(), testConvID, "stranger", 50, "")
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestAcceptOffer_ByCounterparty(t *testing.T) {
	f := newOfferFixture(10)
	offer := f.pendingOffer(t, testBuyerID, 80)

	accepted, err := f.offers.Accept(context.Background(), offer.ID, testSellerID)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if accepted.Status != domain.OfferStatusAccepted {
		t.Errorf("expected accepted, got %s", accepted.Status)
	}
}

func TestAcceptOffer_ByAuthorFails(t *testing.T) {
	f := newOfferFixture(10)
	offer := f.pendingOffer(t, testBuyerID, 80)

	_, err := f.offers.Accept(context.Background(), offer.ID, testBuyerID)
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}

	got, _ := f.store.GetOffer(context.Background(), offer.ID)
	if got.Status != domain.OfferStatusPending {
		t.Errorf("offer mutated by unauthorized accept: %s", got.Status)
	}
}

func TestAcceptOffer_RejectsOtherPending(t *testing.T) {
	f := newOfferFixture(10)
	first := f.pendingOffer(t, testBuyerID, 70)
	second := f.pendingOffer(t, testBuyerID, 75)

	if _, err := f.offers.Accept(context.Background(), second.ID, testSellerID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	got, _ := f.store.GetOffer(context.Background(), first.ID)
	if got.Status != domain.OfferStatusRejected {
		t.Errorf("expected sibling offer rejected, got %s", got.Status)
	}
}

func TestTransition_OnlyOnceOutOfPending(t *testing.T) {
	f := newOfferFixture(10)
	offer := f.pendingOffer(t, testBuyerID, 80)

	if _, err := f.offers.Accept(context.Background(), offer.ID, testSellerID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	_, err := f.offers.Reject(context.Background(), offer.ID, testSellerID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := f.store.GetOffer(context.Background(), offer.ID)
	if got.Status != domain.OfferStatusAccepted {
		t.Errorf("losing transition overwrote status: %s", got.Status)
	}
}

func TestTransition_ConcurrentAcceptReject(t *testing.T) {
	f := newOfferFixture(10)
	offer := f.pendingOffer(t, testBuyerID, 80)

	var wg sync.WaitGroup
	results := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = f.offers.Accept(context.Background(), offer.ID, testSellerID)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = f.offers.Reject(context.Background(), offer.ID, testSellerID)
	}()
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("loser should fail with ErrInvalidTransition, got %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winning transition, got %d", winners)
	}

	got, _ := f.store.GetOffer(context.Background(), offer.ID)
	if got.Status == domain.OfferStatusPending {
		t.Error("offer still pending after concurrent transitions")
	}
}

func TestWithdraw_AuthorOnly(t *testing.T) {
	f := newOfferFixture(10)
	offer := f.pendingOffer(t, testBuyerID, 80)

	if _, err := f.offers.Withdraw(context.Background(), offer.ID, testSellerID); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("counterparty withdraw: expected ErrNotAuthorized, got %v", err)
	}

	withdrawn, err := f.offers.Withdraw(context.Background(), offer.ID, testBuyerID)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if withdrawn.Status != domain.OfferStatusWithdrawn {
		t.Errorf("expected withdrawn, got %s", withdrawn.Status)
	}
}

func TestReserve_AcceptedOfferCreatesOrder(t *testing.T) {
	f := newOfferFixture(5)
	offer := f.pendingOffer(t, testBuyerID, 80)
	if _, err := f.offers.Accept(context.Background(), offer.ID, testSellerID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	reserved, order, err := f.offers.Reserve(context.Background(), offer.ID, testSellerID, 5)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if !reserved.Reserved || reserved.ReservedQuantity != 5 || reserved.ReservedPrice != 80 {
		t.Errorf("unexpected reservation fields: %+v", reserved)
	}
	if order.Quantity != 5 || order.TotalPrice != 400 {
		t.Errorf("expected order quantity 5 total 400, got %d/%v", order.Quantity, order.TotalPrice)
	}
	if order.Currency != domain.DefaultCurrency {
		t.Errorf("expected default currency, got %s", order.Currency)
	}
	if order.BuyerID != testBuyerID || order.SellerID != testSellerID {
		t.Errorf("order parties wrong: %+v", order)
	}

	inventory := NewInventoryService(f.store, f.store)
	available, err := inventory.AvailableQuantity(context.Background(), testProductID)
	if err != nil {
		t.Fatalf("AvailableQuantity failed: %v", err)
	}
	if available != 0 {
		t.Errorf("expected availability 0, got %d", available)
	}
}

func TestReserve_ByBuyerFails(t *testing.T) {
	f := newOfferFixture(5)
	offer := f.pendingOffer(t, testBuyerID, 80)
	f.offers.Accept(context.Background(), offer.ID, testSellerID)

	_, _, err := f.offers.Reserve(context.Background(), offer.ID, testBuyerID, 1)
	if !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestReserve_PendingOfferFails(t *testing.T) {
	f := newOfferFixture(5)
	offer := f.pendingOffer(t, testBuyerID, 80)

	_, _, err := f.offers.Reserve(context.Background(), offer.ID, testSellerID, 1)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReserve_AlreadyReserved(t *testing.T) {
	f := newOfferFixture(10)
	offer := f.pendingOffer(t, testBuyerID, 80)
	f.offers.Accept(context.Background(), offer.ID, testSellerID)
	if _, _, err := f.offers.Reserve(context.Background(), offer.ID, testSellerID, 2); err != nil {
		t.Fatalf("first Reserve failed: %v", err)
	}

	_, _, err := f.offers.Reserve(context.Background(), offer.ID, testSellerID, 3)
	if !errors.Is(err, domain.ErrAlreadyReserved) {
		t.Errorf("expected ErrAlreadyReserved, got %v", err)
	}

	// The failed call must not have touched the reservation or stock.
	got, _ := f.store.GetOffer(context.Background(), offer.ID)
	if got.ReservedQuantity != 2 {
		t.Errorf("reservation mutated by failed reserve: %+v", got)
	}
	p, _ := f.store.GetProduct(context.Background(), testProductID)
	if p.Quantity != 8 {
		t.Errorf("stock mutated by failed reserve: %d", p.Quantity)
	}
}

func TestReserve_InsufficientInventoryRollsBack(t *testing.T) {
	f := newOfferFixture(3)
	offer := f.pendingOffer(t, testBuyerID, 80)
	f.offers.Accept(context.Background(), offer.ID, testSellerID)

	_, _, err := f.offers.Reserve(context.Background(), offer.ID, testSellerID, 7)
	if !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}

	// The reservation mark is compensated so the offer can be reserved
	// again with a quantity that fits.
	got, _ := f.store.GetOffer(context.Background(), offer.ID)
	if got.Reserved {
		t.Error("reservation mark not rolled back")
	}
	if _, _, err := f.offers.Reserve(context.Background(), offer.ID, testSellerID, 3); err != nil {
		t.Errorf("retry with fitting quantity failed: %v", err)
	}
}

func TestReserve_ConcurrentOverdraft(t *testing.T) {
	f := newOfferFixture(10)
	first := f.pendingOffer(t, testBuyerID, 80)
	if _, err := f.offers.Accept(context.Background(), first.ID, testSellerID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	second := f.pendingOffer(t, testBuyerID, 85)
	if _, err := f.offers.Accept(context.Background(), second.ID, testSellerID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, results[0] = f.offers.Reserve(context.Background(), first.ID, testSellerID, 7)
	}()
	go func() {
		defer wg.Done()
		_, _, results[1] = f.offers.Reserve(context.Background(), second.ID, testSellerID, 7)
	}()
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, domain.ErrInsufficientInventory) {
			t.Errorf("loser should fail with ErrInsufficientInventory, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one successful reservation, got %d", winners)
	}

	inventory := NewInventoryService(f.store, f.store)
	available, err := inventory.AvailableQuantity(context.Background(), testProductID)
	if err != nil {
		t.Fatalf("AvailableQuantity failed: %v", err)
	}
	if available != 3 {
		t.Errorf("expected availability 3, got %d", available)
	}
	p, _ := f.store.GetProduct(context.Background(), testProductID)
	if p.Quantity != 3 {
		t.Errorf("expected stock 3, got %d", p.Quantity)
	}
}
