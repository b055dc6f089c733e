// Package store persists the restaurant's menu and orders in a single JSON
// document. Writers are serialized by a mutex and every mutation rewrites
// the whole file via temp-file + rename, so readers observe either the
// pre-write or post-write snapshot, never a mix. Durability across
// redeploys is explicitly out of scope; the contract is intra-process
// atomicity and read-after-write consistency.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Errors returned by the store.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict: record changed")
)

// Store is a single-writer document store backed by one JSON file.
type Store struct {
	path string

	mu  sync.RWMutex
	doc Document
}

// Open loads the document from path, seeding a starter menu when the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		ensureMaps(&s.doc)
	case os.IsNotExist(err):
		s.doc = seedDocument()
		if err := s.commit(s.doc); err != nil {
			return nil, fmt.Errorf("seed %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return s, nil
}

// commit writes doc to disk atomically and installs it as the current
// snapshot. Callers must hold the write lock (or be the only goroutine,
// as in Open). On write failure the in-memory snapshot is left unchanged.
func (s *Store) commit(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.doc = doc
	return nil
}

// --- Menu items ---

// ListMenuItems returns all menu items sorted by ID.
func (s *Store) ListMenuItems() []MenuItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]MenuItem, 0, len(s.doc.MenuItems))
	for _, it := range s.doc.MenuItems {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *Store) GetMenuItem(id string) (MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.doc.MenuItems[id]
	if !ok {
		return MenuItem{}, ErrNotFound
	}
	return it, nil
}

// UpsertMenuItem creates or replaces a menu item.
func (s *Store) UpsertMenuItem(item MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.doc
	doc.MenuItems = cloneMap(s.doc.MenuItems)
	doc.MenuItems[item.ID] = item
	return s.commit(doc)
}

func (s *Store) DeleteMenuItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.MenuItems[id]; !ok {
		return ErrNotFound
	}
	doc := s.doc
	doc.MenuItems = cloneMap(s.doc.MenuItems)
	delete(doc.MenuItems, id)
	return s.commit(doc)
}

// --- Categories ---

func (s *Store) ListCategories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := make([]Category, 0, len(s.doc.Categories))
	for _, c := range s.doc.Categories {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	return cats
}

func (s *Store) UpsertCategory(cat Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.doc
	doc.Categories = cloneMap(s.doc.Categories)
	doc.Categories[cat.ID] = cat
	return s.commit(doc)
}

func (s *Store) DeleteCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Categories[id]; !ok {
		return ErrNotFound
	}
	doc := s.doc
	doc.Categories = cloneMap(s.doc.Categories)
	delete(doc.Categories, id)
	return s.commit(doc)
}

// --- Orders ---

// CreateOrder persists a new order. The ID must be unique for the lifetime
// of the data file.
func (s *Store) CreateOrder(o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Orders[o.ID]; ok {
		return Order{}, fmt.Errorf("order %s: %w", o.ID, ErrConflict)
	}
	doc := s.doc
	doc.Orders = cloneMap(s.doc.Orders)
	doc.Orders[o.ID] = o
	if err := s.commit(doc); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrder(id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.doc.Orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// ListOrders returns orders, newest first. An empty status returns all.
func (s *Store) ListOrders(status OrderStatus) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]Order, 0, len(s.doc.Orders))
	for _, o := range s.doc.Orders {
		if status != "" && o.Status != status {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

// CountOrders reports the number of stored orders.
func (s *Store) CountOrders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doc.Orders)
}

// UpdateOrderStatus transitions an order from one status to another with
// compare-and-set semantics: if the stored status no longer matches from,
// ErrConflict is returned and nothing is written. A non-empty paymentRef
// is recorded alongside the transition.
func (s *Store) UpdateOrderStatus(id string, from, to OrderStatus, paymentRef string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.doc.Orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != from {
		return Order{}, fmt.Errorf("order %s is %s, not %s: %w", id, o.Status, from, ErrConflict)
	}

	o.Status = to
	if paymentRef != "" {
		o.PaymentRef = paymentRef
	}
	o.UpdatedAt = time.Now().UTC()

	doc := s.doc
	doc.Orders = cloneMap(s.doc.Orders)
	doc.Orders[id] = o
	if err := s.commit(doc); err != nil {
		return Order{}, err
	}
	return o, nil
}

// AttachProviderOrder records the payment provider's checkout order ID on a
// PENDING order.
func (s *Store) AttachProviderOrder(id, providerOrderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.doc.Orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != OrderStatusPending {
		return Order{}, fmt.Errorf("order %s is %s: %w", id, o.Status, ErrConflict)
	}

	o.ProviderOrderID = providerOrderID
	o.UpdatedAt = time.Now().UTC()

	doc := s.doc
	doc.Orders = cloneMap(s.doc.Orders)
	doc.Orders[id] = o
	if err := s.commit(doc); err != nil {
		return Order{}, err
	}
	return o, nil
}

// --- Backup / restore ---

// Snapshot returns the current document as JSON, for the admin backup
// download.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.doc, "", "  ")
}

// Restore replaces the whole document with the given JSON snapshot. The
// snapshot must contain the menu_items and categories collections and is
// held to the same bounds the admin edit surface enforces, so a restore can
// never smuggle in records a handler would have refused.
func (s *Store) Restore(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if doc.MenuItems == nil || doc.Categories == nil {
		return errors.New("invalid snapshot: missing menu_items or categories")
	}
	if err := validateDocument(doc); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	ensureMaps(&doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(doc)
}

// validateDocument checks every record in a snapshot against the document
// invariants.
func validateDocument(doc Document) error {
	for id, item := range doc.MenuItems {
		if item.Name == "" {
			return fmt.Errorf("menu item %s: name is required", id)
		}
		if item.Price.IsNegative() {
			return fmt.Errorf("menu item %s: price must be >= 0", id)
		}
		if item.Discount < 0 || item.Discount > 100 {
			return fmt.Errorf("menu item %s: discount must be between 0 and 100", id)
		}
	}
	for id, cat := range doc.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category %s: name is required", id)
		}
	}
	for id, o := range doc.Orders {
		if !o.Status.Valid() {
			return fmt.Errorf("order %s: unknown status %q", id, o.Status)
		}
	}
	return nil
}

// --- Helpers ---

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func ensureMaps(doc *Document) {
	if doc.MenuItems == nil {
		doc.MenuItems = make(map[string]MenuItem)
	}
	if doc.Categories == nil {
		doc.Categories = make(map[string]Category)
	}
	if doc.Orders == nil {
		doc.Orders = make(map[string]Order)
	}
}

// seedDocument builds the starter menu used the first time the service
// runs against an empty data directory.
func seedDocument() Document {
	doc := Document{
		MenuItems:  make(map[string]MenuItem),
		Categories: make(map[string]Category),
		Orders:     make(map[string]Order),
	}

	doc.Categories["1"] = Category{ID: "1", Name: "Appetizers"}
	doc.Categories["2"] = Category{ID: "2", Name: "Main Course"}

	doc.MenuItems["1"] = MenuItem{
		ID:          "1",
		Name:        "Filet Mignon Steak",
		Description: "Premium beef steak",
		Price:       decimal.RequireFromString("15.50"),
		Discount:    10,
		Category:    "2",
		Image:       "https://images.unsplash.com/photo-1600891964092-4316c288032e?w=400",
		Available:   true,
	}

	return doc
}
