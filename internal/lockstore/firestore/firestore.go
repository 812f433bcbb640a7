package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/travhall/el-camino-sub001/internal/lockstore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store implements lockstore.Store using Google Cloud Firestore, for
// deployments where several storefront instances share one reservation
// table. The acquire critical section runs inside a Firestore
// transaction in place of the in-memory store's mutex.
type Store struct {
	client     *firestore.Client
	collection string
}

// resDoc is the Firestore document schema for a reservation.
type resDoc struct {
	ItemID    string    `firestore:"item_id"`
	OwnerID   string    `firestore:"owner_id"`
	Quantity  int       `firestore:"quantity"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"created_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

func New(ctx context.Context, project, collection string) (*Store, error) {
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Store{client: client, collection: collection}, nil
}

func (s *Store) docID(itemID, ownerID string) string {
	return fmt.Sprintf("%s__%s", itemID, ownerID)
}

func (s *Store) docRef(itemID, ownerID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(s.docID(itemID, ownerID))
}

func (sd *resDoc) reservation() lockstore.Reservation {
	return lockstore.Reservation{
		ItemID:    sd.ItemID,
		OwnerID:   sd.OwnerID,
		Quantity:  sd.Quantity,
		Status:    lockstore.Status(sd.Status),
		CreatedAt: sd.CreatedAt,
		ExpiresAt: sd.ExpiresAt,
	}
}

func (s *Store) Acquire(ctx context.Context, itemID, ownerID string, quantity, onHand int, ttl time.Duration, now time.Time) (*lockstore.Reservation, error) {
	var result *lockstore.Reservation

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.docRef(itemID, ownerID)

		// Re-acquisition extends the existing entry rather than duplicating it
		doc, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to read reservation: %w", err)
		}
		if err == nil {
			var sd resDoc
			if parseErr := doc.DataTo(&sd); parseErr != nil {
				return fmt.Errorf("failed to parse reservation: %w", parseErr)
			}
			existing := sd.reservation()
			if existing.Valid(now) {
				if quantity > existing.Quantity {
					existing.Quantity = quantity
				}
				existing.ExpiresAt = now.Add(ttl)
				if err := tx.Set(ref, docFrom(existing)); err != nil {
					return fmt.Errorf("failed to extend reservation: %w", err)
				}
				result = &existing
				return nil
			}
		}

		// Sum capacity held by other valid reservations for the item
		iter := tx.Documents(s.client.Collection(s.collection).Where("item_id", "==", itemID))
		docs, err := iter.GetAll()
		if err != nil {
			return fmt.Errorf("failed to query reservations: %w", err)
		}

		others := 0
		for _, d := range docs {
			var sd resDoc
			if err := d.DataTo(&sd); err != nil {
				return fmt.Errorf("failed to parse reservation: %w", err)
			}
			r := sd.reservation()
			if r.OwnerID != ownerID && r.Valid(now) {
				others += r.Quantity
			}
		}

		available := onHand - others
		if available < 0 {
			available = 0
		}
		if available < quantity {
			return &lockstore.InsufficientError{
				ItemID:    itemID,
				Requested: quantity,
				Available: available,
			}
		}

		r := lockstore.Reservation{
			ItemID:    itemID,
			OwnerID:   ownerID,
			Quantity:  quantity,
			Status:    lockstore.StatusPending,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if err := tx.Set(ref, docFrom(r)); err != nil {
			return fmt.Errorf("failed to write reservation: %w", err)
		}

		result = &r
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

func docFrom(r lockstore.Reservation) resDoc {
	return resDoc{
		ItemID:    r.ItemID,
		OwnerID:   r.OwnerID,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func (s *Store) Extend(ctx context.Context, itemID, ownerID string, quantity int, ttl time.Duration, now time.Time) (*lockstore.Reservation, error) {
	var result *lockstore.Reservation

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.docRef(itemID, ownerID)

		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return lockstore.ErrNotFound
			}
			return fmt.Errorf("failed to read reservation: %w", err)
		}

		var sd resDoc
		if err := doc.DataTo(&sd); err != nil {
			return fmt.Errorf("failed to parse reservation: %w", err)
		}

		r := sd.reservation()
		if !r.Valid(now) {
			return lockstore.ErrNotFound
		}

		if quantity > r.Quantity {
			r.Quantity = quantity
		}
		r.ExpiresAt = now.Add(ttl)

		if err := tx.Set(ref, docFrom(r)); err != nil {
			return fmt.Errorf("failed to extend reservation: %w", err)
		}

		result = &r
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Get(ctx context.Context, itemID, ownerID string, now time.Time) (*lockstore.Reservation, error) {
	doc, err := s.docRef(itemID, ownerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, lockstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read reservation: %w", err)
	}

	var sd resDoc
	if err := doc.DataTo(&sd); err != nil {
		return nil, fmt.Errorf("failed to parse reservation: %w", err)
	}

	r := sd.reservation()
	if !r.Valid(now) {
		return nil, lockstore.ErrExpired
	}
	return &r, nil
}

func (s *Store) Confirm(ctx context.Context, itemID, ownerID string, now time.Time) (bool, error) {
	confirmed := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.docRef(itemID, ownerID)

		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return fmt.Errorf("failed to read reservation: %w", err)
		}

		var sd resDoc
		if err := doc.DataTo(&sd); err != nil {
			return fmt.Errorf("failed to parse reservation: %w", err)
		}

		r := sd.reservation()
		if !r.Valid(now) {
			return nil
		}

		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(lockstore.StatusConfirmed)},
		}); err != nil {
			return fmt.Errorf("failed to confirm reservation: %w", err)
		}

		confirmed = true
		return nil
	})

	if err != nil {
		return false, err
	}
	return confirmed, nil
}

func (s *Store) Release(ctx context.Context, itemID, ownerID string) (bool, error) {
	released := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.docRef(itemID, ownerID)

		_, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return fmt.Errorf("failed to read reservation: %w", err)
		}

		if err := tx.Delete(ref); err != nil {
			return fmt.Errorf("failed to delete reservation: %w", err)
		}

		released = true
		return nil
	})

	if err != nil {
		return false, err
	}
	return released, nil
}

func (s *Store) Active(ctx context.Context, now time.Time) ([]lockstore.Reservation, error) {
	docs, err := s.client.Collection(s.collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	var active []lockstore.Reservation
	for _, d := range docs {
		var sd resDoc
		if err := d.DataTo(&sd); err != nil {
			return nil, fmt.Errorf("failed to parse reservation: %w", err)
		}
		r := sd.reservation()
		if r.Valid(now) {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *Store) Sweep(ctx context.Context, now time.Time) ([]lockstore.Reservation, error) {
	docs, err := s.client.Collection(s.collection).
		Where("status", "==", string(lockstore.StatusPending)).
		Where("expires_at", "<=", now).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query expired reservations: %w", err)
	}

	var removed []lockstore.Reservation
	for _, d := range docs {
		var sd resDoc
		if err := d.DataTo(&sd); err != nil {
			return nil, fmt.Errorf("failed to parse reservation: %w", err)
		}
		// A concurrent extend can move expires_at after the query
		// snapshot; the precondition makes the delete lose that race
		// instead of removing a live reservation.
		_, err := d.Ref.Delete(ctx, firestore.LastUpdateTime(d.UpdateTime))
		if err != nil {
			if status.Code(err) == codes.FailedPrecondition {
				continue
			}
			return removed, fmt.Errorf("failed to delete expired reservation: %w", err)
		}
		r := sd.reservation()
		r.Status = lockstore.StatusExpired
		removed = append(removed, r)
	}
	return removed, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
