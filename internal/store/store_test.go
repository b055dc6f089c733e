package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func testOrder(id string) Order {
	now := time.Now().UTC()
	return Order{
		ID:     id,
		Lines:  []OrderLine{{ItemID: "1", Name: "Burger", UnitPrice: decimal.RequireFromString("9.00"), Quantity: 2}},
		Total:  decimal.RequireFromString("18.00"),
		Status: OrderStatusPending,
		Customer: Customer{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Phone:     "+96812345678",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOpenSeedsStarterMenu(t *testing.T) {
	s := openTestStore(t)

	if len(s.ListMenuItems()) == 0 {
		t.Error("expected seeded menu items on first run")
	}
	if len(s.ListCategories()) == 0 {
		t.Error("expected seeded categories on first run")
	}
	if s.CountOrders() != 0 {
		t.Error("expected no seeded orders")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.CreateOrder(testOrder("order-1")); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if err := s.UpsertMenuItem(MenuItem{ID: "burger", Name: "Burger", Price: decimal.RequireFromString("9.00"), Available: true}); err != nil {
		t.Fatalf("UpsertMenuItem() error = %v", err)
	}

	// A fresh Store over the same file must see every committed write.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if _, err := reopened.GetOrder("order-1"); err != nil {
		t.Errorf("GetOrder after reopen: %v", err)
	}
	item, err := reopened.GetMenuItem("burger")
	if err != nil {
		t.Fatalf("GetMenuItem after reopen: %v", err)
	}
	if !item.Price.Equal(decimal.RequireFromString("9.00")) {
		t.Errorf("price not preserved: %s", item.Price)
	}
}

func TestCreateOrderDuplicateID(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.CreateOrder(testOrder("dup")); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if _, err := s.CreateOrder(testOrder("dup")); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate CreateOrder() error = %v, want ErrConflict", err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetOrder("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOrder() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateOrderStatusCAS(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreateOrder(testOrder("order-1")); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	updated, err := s.UpdateOrderStatus("order-1", OrderStatusPending, OrderStatusPaid, "CAP-123")
	if err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	if updated.Status != OrderStatusPaid {
		t.Errorf("status = %s, want PAID", updated.Status)
	}
	if updated.PaymentRef != "CAP-123" {
		t.Errorf("payment ref = %q, want CAP-123", updated.PaymentRef)
	}

	// A second transition from PENDING must lose: the stored status moved on.
	if _, err := s.UpdateOrderStatus("order-1", OrderStatusPending, OrderStatusFailed, ""); !errors.Is(err, ErrConflict) {
		t.Errorf("stale transition error = %v, want ErrConflict", err)
	}

	// Payment ref survives a later transition with an empty ref.
	updated, err = s.UpdateOrderStatus("order-1", OrderStatusPaid, OrderStatusFulfilled, "")
	if err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	if updated.PaymentRef != "CAP-123" {
		t.Errorf("payment ref lost on later transition: %q", updated.PaymentRef)
	}
}

func TestUpdateOrderStatusNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.UpdateOrderStatus("missing", OrderStatusPending, OrderStatusPaid, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOrderStatus() error = %v, want ErrNotFound", err)
	}
}

func TestAttachProviderOrder(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreateOrder(testOrder("order-1")); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	updated, err := s.AttachProviderOrder("order-1", "PAYPAL-XYZ")
	if err != nil {
		t.Fatalf("AttachProviderOrder() error = %v", err)
	}
	if updated.ProviderOrderID != "PAYPAL-XYZ" {
		t.Errorf("provider order id = %q", updated.ProviderOrderID)
	}

	if _, err := s.UpdateOrderStatus("order-1", OrderStatusPending, OrderStatusPaid, "ref"); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	if _, err := s.AttachProviderOrder("order-1", "PAYPAL-LATE"); !errors.Is(err, ErrConflict) {
		t.Errorf("attach on non-pending order error = %v, want ErrConflict", err)
	}
}

func TestConcurrentCreatesNoLostWrites(t *testing.T) {
	s := openTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateOrder(testOrder(fmt.Sprintf("order-%d", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("CreateOrder(%d) error = %v", i, err)
		}
	}
	if got := s.CountOrders(); got != n {
		t.Errorf("stored %d orders, want %d", got, n)
	}
	for i := 0; i < n; i++ {
		if _, err := s.GetOrder(fmt.Sprintf("order-%d", i)); err != nil {
			t.Errorf("order-%d not retrievable: %v", i, err)
		}
	}
}

func TestConcurrentStatusUpdatesSingleWinner(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreateOrder(testOrder("contested")); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.UpdateOrderStatus("contested", OrderStatusPending, OrderStatusPaid, fmt.Sprintf("ref-%d", i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("%d transitions won, want exactly 1", wins)
	}
}

func TestMenuReadAfterWrite(t *testing.T) {
	s := openTestStore(t)

	item := MenuItem{ID: "pasta", Name: "Pasta", Price: decimal.RequireFromString("7.25"), Available: true}
	if err := s.UpsertMenuItem(item); err != nil {
		t.Fatalf("UpsertMenuItem() error = %v", err)
	}
	got, err := s.GetMenuItem("pasta")
	if err != nil {
		t.Fatalf("GetMenuItem() error = %v", err)
	}
	if got.Name != "Pasta" {
		t.Errorf("name = %s", got.Name)
	}

	if err := s.DeleteMenuItem("pasta"); err != nil {
		t.Fatalf("DeleteMenuItem() error = %v", err)
	}
	if _, err := s.GetMenuItem("pasta"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMenuItem after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteMenuItem("pasta"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete error = %v, want ErrNotFound", err)
	}
}

func TestListOrdersFilterAndOrdering(t *testing.T) {
	s := openTestStore(t)

	a := testOrder("a")
	a.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	b := testOrder("b")
	b.CreatedAt = time.Now().UTC().Add(-1 * time.Hour)
	if _, err := s.CreateOrder(a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateOrder(b); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateOrderStatus("a", OrderStatusPending, OrderStatusPaid, "r"); err != nil {
		t.Fatal(err)
	}

	all := s.ListOrders("")
	if len(all) != 2 {
		t.Fatalf("ListOrders(all) = %d orders, want 2", len(all))
	}
	if all[0].ID != "b" {
		t.Errorf("newest first: got %s", all[0].ID)
	}

	paid := s.ListOrders(OrderStatusPaid)
	if len(paid) != 1 || paid[0].ID != "a" {
		t.Errorf("ListOrders(PAID) = %+v", paid)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreateOrder(testOrder("order-1")); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	other := openTestStore(t)
	if err := other.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, err := other.GetOrder("order-1"); err != nil {
		t.Errorf("restored order not found: %v", err)
	}

	if err := other.Restore([]byte(`{"nope": true}`)); err == nil {
		t.Error("Restore() accepted a snapshot without menu_items/categories")
	}
	if err := other.Restore([]byte(`not json`)); err == nil {
		t.Error("Restore() accepted malformed JSON")
	}
}

func TestRestoreEnforcesDocumentBounds(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name     string
		snapshot string
	}{
		{
			"discount out of range",
			`{"menu_items":{"x":{"id":"x","name":"Burger","price":"9.00","discount":150,"available":true}},"categories":{},"orders":{}}`,
		},
		{
			"negative price",
			`{"menu_items":{"x":{"id":"x","name":"Burger","price":"-1.00","discount":0,"available":true}},"categories":{},"orders":{}}`,
		},
		{
			"nameless item",
			`{"menu_items":{"x":{"id":"x","price":"9.00","discount":0,"available":true}},"categories":{},"orders":{}}`,
		},
		{
			"nameless category",
			`{"menu_items":{},"categories":{"c":{"id":"c"}},"orders":{}}`,
		},
		{
			"unknown order status",
			`{"menu_items":{},"categories":{},"orders":{"o":{"id":"o","total":"9.00","status":"SHIPPED"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Restore([]byte(tt.snapshot)); err == nil {
				t.Error("Restore() accepted a snapshot the admin edit surface would refuse")
			}
		})
	}

	// Records inside the bounds restore fine.
	ok := `{"menu_items":{"x":{"id":"x","name":"Burger","price":"9.00","discount":10,"available":true}},"categories":{"c":{"id":"c","name":"Mains"}},"orders":{"o":{"id":"o","total":"9.00","status":"PAID"}}}`
	if err := s.Restore([]byte(ok)); err != nil {
		t.Errorf("Restore() rejected a valid snapshot: %v", err)
	}
}
