package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/curelink/patient-portal/pkg/logging"
)

// TopicCartUpdated is the in-process broadcast topic fired after every cart
// mutation. The payload is the patient ID whose cart changed; subscribers
// refetch rather than receiving the new state.
const TopicCartUpdated = "cart:updated"

const defaultKeyPrefix = "cart:"

// Store keeps each patient's cart as a single JSON-encoded array of lines
// under one Redis key. There is no schema version and no migration path;
// unreadable stored data reads back as an empty cart.
type Store struct {
	redis     *redis.Client
	bus       EventBus.Bus
	logger    *logging.Logger
	tracer    trace.Tracer
	keyPrefix string
	ttl       time.Duration
	strict    bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithTTL sets the expiry applied on every cart write. Zero disables expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithStrictErrors makes storage write failures surface to callers instead
// of being logged and swallowed.
func WithStrictErrors(strict bool) StoreOption {
	return func(s *Store) { s.strict = strict }
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a cart store. The bus is optional; with a nil bus no
// update broadcasts are fired.
func NewStore(redisClient *redis.Client, bus EventBus.Bus, opts ...StoreOption) *Store {
	s := &Store{
		redis:     redisClient,
		bus:       bus,
		logger:    logging.Default(),
		tracer:    otel.Tracer("portal.internal.cart"),
		keyPrefix: defaultKeyPrefix,
		ttl:       30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the patient's cart in insertion order. Missing or unparseable
// storage reads as an empty cart; in lenient mode transient Redis errors do
// too.
func (s *Store) Get(ctx context.Context, patientID string) ([]Line, error) {
	if patientID == "" {
		return nil, errors.New("cart: patientID required")
	}

	ctx, span := s.tracer.Start(ctx, "cart.get")
	defer span.End()

	return s.load(ctx, span, patientID)
}

// Add upserts a line by (product, pharmacy) key. An existing line gets the
// incoming quantity added and clamped to available stock; a new line is
// appended. Persists and broadcasts on success.
func (s *Store) Add(ctx context.Context, patientID string, line Line) error {
	if patientID == "" {
		return errors.New("cart: patientID required")
	}
	if line.ProductID == "" || line.PharmacyID == "" {
		return errors.New("cart: product and pharmacy id required")
	}
	if line.Quantity <= 0 {
		line.Quantity = 1
	}

	ctx, span := s.tracer.Start(ctx, "cart.add")
	defer span.End()

	lines, err := s.load(ctx, span, patientID)
	if err != nil {
		return err
	}

	found := false
	for i := range lines {
		if lines[i].SameKey(line.ProductID, line.PharmacyID) {
			lines[i].Quantity = lines[i].clampQuantity(lines[i].Quantity + line.Quantity)
			found = true
			break
		}
	}
	if !found {
		line.Quantity = line.clampQuantity(line.Quantity)
		lines = append(lines, line)
	}

	return s.persist(ctx, span, patientID, lines)
}

// UpdateQuantity sets the quantity of an existing line, clamped to available
// stock. A result of zero or below removes the line. An absent key is a
// no-op with no broadcast.
func (s *Store) UpdateQuantity(ctx context.Context, patientID, productID, pharmacyID string, quantity int) error {
	if patientID == "" {
		return errors.New("cart: patientID required")
	}

	ctx, span := s.tracer.Start(ctx, "cart.update_quantity")
	defer span.End()

	lines, err := s.load(ctx, span, patientID)
	if err != nil {
		return err
	}

	for i := range lines {
		if !lines[i].SameKey(productID, pharmacyID) {
			continue
		}
		if quantity <= 0 {
			lines = append(lines[:i], lines[i+1:]...)
		} else {
			lines[i].Quantity = lines[i].clampQuantity(quantity)
		}
		return s.persist(ctx, span, patientID, lines)
	}
	return nil
}

// Remove deletes the matching line. It persists and broadcasts even when
// nothing matched, which the portal UI tolerates as a spurious refresh.
func (s *Store) Remove(ctx context.Context, patientID, productID, pharmacyID string) error {
	if patientID == "" {
		return errors.New("cart: patientID required")
	}

	ctx, span := s.tracer.Start(ctx, "cart.remove")
	defer span.End()

	lines, err := s.load(ctx, span, patientID)
	if err != nil {
		return err
	}

	kept := lines[:0]
	for _, l := range lines {
		if !l.SameKey(productID, pharmacyID) {
			kept = append(kept, l)
		}
	}
	return s.persist(ctx, span, patientID, kept)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context, patientID string) error {
	if patientID == "" {
		return errors.New("cart: patientID required")
	}

	ctx, span := s.tracer.Start(ctx, "cart.clear")
	defer span.End()

	return s.persist(ctx, span, patientID, []Line{})
}

// Count is the sum of quantities across all lines.
func (s *Store) Count(ctx context.Context, patientID string) (int, error) {
	lines, err := s.Get(ctx, patientID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total, nil
}

// Total is the sum of price times quantity across all lines, in cents.
// MRP and discount are ignored; delivery fees are the checkout layer's job.
func (s *Store) Total(ctx context.Context, patientID string) (int64, error) {
	lines, err := s.Get(ctx, patientID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total, nil
}

// Contains reports whether a line with the given key is in the cart.
func (s *Store) Contains(ctx context.Context, patientID, productID, pharmacyID string) (bool, error) {
	lines, err := s.Get(ctx, patientID)
	if err != nil {
		return false, err
	}
	for _, l := range lines {
		if l.SameKey(productID, pharmacyID) {
			return true, nil
		}
	}
	return false, nil
}

// GroupByPharmacy partitions the cart by pharmacy, preserving per-pharmacy
// insertion order. The grouping is recomputed on every call, never stored.
func (s *Store) GroupByPharmacy(ctx context.Context, patientID string) (map[string][]Line, error) {
	lines, err := s.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]Line)
	for _, l := range lines {
		grouped[l.PharmacyID] = append(grouped[l.PharmacyID], l)
	}
	return grouped, nil
}

func (s *Store) key(patientID string) string {
	return s.keyPrefix + patientID
}

func (s *Store) load(ctx context.Context, span trace.Span, patientID string) ([]Line, error) {
	raw, err := s.redis.Get(ctx, s.key(patientID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []Line{}, nil
		}
		span.RecordError(err)
		if s.strict {
			return nil, fmt.Errorf("cart: load: %w", err)
		}
		s.logger.Warn("cart: load failed, treating as empty", "error", err, "patient_id", patientID)
		return []Line{}, nil
	}

	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		// Corrupt data is not transient; reading it as an empty cart is the
		// contract even in strict mode.
		span.RecordError(err)
		s.logger.Warn("cart: unparseable stored cart, treating as empty", "error", err, "patient_id", patientID)
		return []Line{}, nil
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines, nil
}

func (s *Store) persist(ctx context.Context, span trace.Span, patientID string, lines []Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("cart: marshal lines: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(patientID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		if s.strict {
			return fmt.Errorf("cart: persist: %w", err)
		}
		s.logger.Warn("cart: persist failed", "error", err, "patient_id", patientID)
		return nil
	}

	s.broadcast(patientID)
	return nil
}

func (s *Store) broadcast(patientID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(TopicCartUpdated, patientID)
}
