package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"MarketPulse/internal/services/forecast"
	"MarketPulse/pkg/logger"
)

const (
	modelKeyPrefix = "model:"
	metaKeyPrefix  = "meta:"
)

// BadgerModelStore keeps artifacts in an embedded badger database. The guard
// check and both writes happen in one transaction.
type BadgerModelStore struct {
	db   *badger.DB
	opts storeOptions
}

// OpenBadgerModelStore opens (or creates) the database at path.
func OpenBadgerModelStore(path string, opts ...StoreOption) (*BadgerModelStore, error) {
	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for artifacts: %w", err)
	}
	return NewBadgerModelStore(db, opts...), nil
}

func NewBadgerModelStore(db *badger.DB, opts ...StoreOption) *BadgerModelStore {
	return &BadgerModelStore{db: db, opts: newStoreOptions(opts)}
}

func (b *BadgerModelStore) Save(_ context.Context, s *forecast.State) (bool, error) {
	if !s.Trained() {
		pid := ""
		if s != nil {
			pid = s.ProductID
		}
		return false, &forecast.Error{Kind: forecast.ErrPrecondition, ProductID: pid, Op: "save", Detail: "state is not trained"}
	}

	now := b.opts.now()
	data, err := encodeArtifact(s, now)
	if err != nil {
		return false, persistenceError(s.ProductID, "encode artifact", err)
	}
	meta, err := json.Marshal(metadataFor(s, now))
	if err != nil {
		return false, persistenceError(s.ProductID, "encode metadata", err)
	}

	saved := false
	err = b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKeyPrefix + s.ProductID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("get metadata: %w", err)
		default:
			var existing Metadata
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &existing) }); err == nil &&
				b.opts.refuse(s.ProductID, existing.ValMAE, s.Metrics.ValMAE) {
				return nil
			}
		}
		if err := txn.Set([]byte(modelKeyPrefix+s.ProductID), data); err != nil {
			return fmt.Errorf("set model: %w", err)
		}
		if err := txn.Set([]byte(metaKeyPrefix+s.ProductID), meta); err != nil {
			return fmt.Errorf("set metadata: %w", err)
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, persistenceError(s.ProductID, "save", err)
	}
	if saved {
		b.opts.log.Info("artifact saved",
			logger.String("product_id", s.ProductID),
			logger.String("backend", "badger"),
			logger.String("mode", string(s.Mode)),
			logger.Float64("val_mae", s.Metrics.ValMAE))
	}
	return saved, nil
}

func (b *BadgerModelStore) Load(_ context.Context, productID string) (*forecast.State, bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(modelKeyPrefix + productID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistenceError(productID, "read artifact", err)
	}
	s, err := decodeArtifact(data, productID)
	if err != nil {
		b.opts.log.Warn("artifact unusable", logger.String("product_id", productID), logger.Error(err))
		return nil, false, err
	}
	return s, true, nil
}

// Metadata returns the stored summary for a product.
func (b *BadgerModelStore) Metadata(productID string) (Metadata, bool, error) {
	var m Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKeyPrefix + productID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &m) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, persistenceError(productID, "read metadata", err)
	}
	return m, true, nil
}

func (b *BadgerModelStore) Close() error {
	return b.db.Close()
}
