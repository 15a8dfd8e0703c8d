package worker

import (
	"context"

	"commerce-backoffice/internal/broker"
	"commerce-backoffice/internal/models"
	"commerce-backoffice/internal/util"

	"go.uber.org/zap"
)

// VariantSource reads variant stock levels from the store
type VariantSource interface {
	FindVariantsByIDs(ctx context.Context, ids []string) ([]models.Variant, error)
	ListVariants(ctx context.Context) ([]models.Variant, error)
}

// StockCache writes stock levels into the advisory cache
type StockCache interface {
	SetStock(ctx context.Context, variantID string, stock int) error
}

// CacheWorker keeps the advisory stock cache in step with the store by
// consuming order lifecycle events and re-reading the affected variants.
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	source       VariantSource
	cache        StockCache
	logger       *zap.Logger
}

// NewCacheWorker creates a cache-refresh worker
func NewCacheWorker(consumer *broker.Consumer, source VariantSource, cache StockCache) *CacheWorker {
	w := &CacheWorker{
		consumer: consumer,
		source:   source,
		cache:    cache,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(func(ctx context.Context, e *models.OrderCreatedEvent) error {
		return w.refreshVariants(ctx, variantIDs(e.Items))
	})
	eventHandler.OnOrderPaid(func(ctx context.Context, e *models.OrderPaidEvent) error {
		return w.refreshVariants(ctx, variantIDs(e.Items))
	})
	w.eventHandler = eventHandler

	return w
}

// Start consumes events until the context is cancelled
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping stock cache worker")
	return w.consumer.Close()
}

// WarmStockCache seeds the cache with every variant's current stock,
// typically at startup.
func (w *CacheWorker) WarmStockCache(ctx context.Context) error {
	variants, err := w.source.ListVariants(ctx)
	if err != nil {
		return err
	}

	for _, v := range variants {
		if err := w.cache.SetStock(ctx, v.ID, v.Stock); err != nil {
			w.logger.Warn("Failed to warm stock cache entry",
				zap.String("variant_id", v.ID),
				zap.Error(err))
		}
	}

	w.logger.Info("Stock cache warmed", zap.Int("count", len(variants)))
	return nil
}

// refreshVariants re-reads the given variants and rewrites their cache
// entries. Per-variant failures are logged and skipped; a failed store read
// fails the whole batch so the message is re-delivered.
func (w *CacheWorker) refreshVariants(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	variants, err := w.source.FindVariantsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, v := range variants {
		if err := w.cache.SetStock(ctx, v.ID, v.Stock); err != nil {
			w.logger.Warn("Failed to refresh stock cache entry",
				zap.String("variant_id", v.ID),
				zap.Error(err))
		}
	}
	return nil
}

func variantIDs(items []models.OrderItemData) []string {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !seen[it.VariantID] {
			seen[it.VariantID] = true
			ids = append(ids, it.VariantID)
		}
	}
	return ids
}
