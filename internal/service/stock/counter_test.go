package stock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/repository/memory"
)

func TestCounterOperations(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(repository.NewRunner(memory.NewStore(), 3, nil), nil)

	feed, err := c.Create(ctx, ItemInput{Name: " Feed sacks ", Quantity: 10, Unit: "sack"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if feed.Name != "Feed sacks" {
		t.Fatalf("name not trimmed: %q", feed.Name)
	}

	steps := []struct {
		name string
		run  func() (models.StockItem, error)
		want int64
		err  error
	}{
		{"add", func() (models.StockItem, error) { return c.Add(ctx, feed.ID, 5) }, 15, nil},
		{"subtract", func() (models.StockItem, error) { return c.Subtract(ctx, feed.ID, 4) }, 11, nil},
		{"subtract too much", func() (models.StockItem, error) { return c.Subtract(ctx, feed.ID, 12) }, 11, models.ErrInsufficientQuantity},
		{"overflowing add", func() (models.StockItem, error) { return c.Add(ctx, feed.ID, math.MaxInt64) }, 11, models.ErrValidation},
		{"zero add", func() (models.StockItem, error) { return c.Add(ctx, feed.ID, 0) }, 11, models.ErrValidation},
		{"set", func() (models.StockItem, error) { return c.SetQuantity(ctx, feed.ID, 3) }, 3, nil},
		{"negative set", func() (models.StockItem, error) { return c.SetQuantity(ctx, feed.ID, -1) }, 3, models.ErrValidation},
		{"unknown item", func() (models.StockItem, error) { return c.Add(ctx, "nope", 1) }, 3, models.ErrNotFound},
	}
	for _, step := range steps {
		_, err := step.run()
		if !errors.Is(err, step.err) {
			t.Fatalf("%s: expected %v, got %v", step.name, step.err, err)
		}
		current, _ := c.Get(ctx, feed.ID)
		if current.Quantity != step.want {
			t.Fatalf("%s: expected %d, got %d", step.name, step.want, current.Quantity)
		}
	}

	items, err := c.List(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one item, got %d (%v)", len(items), err)
	}
}
