package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_quote/internal/feature/quote/domain/entity"
)

// fakeClock はテスト用に時刻を手動で進められる時計です。
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func quote(symbol string, price string) entity.Quote {
	return entity.Quote{
		Symbol: symbol,
		Price:  decimal.NewNullDecimal(decimal.RequireFromString(price)),
	}
}

func TestNewMemoryCache_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ttl         time.Duration
		expectedTTL time.Duration
	}{
		{"zero ttl uses default", 0, DefaultTTL},
		{"negative ttl uses default", -time.Second, DefaultTTL},
		{"custom ttl preserved", time.Minute, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewMemoryCache(tt.ttl)
			assert.Equal(t, tt.expectedTTL, c.TTL())
		})
	}
}

func TestMemoryCache_GetMiss(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(30 * time.Second)
	_, ok := c.Get("TCS.NS")
	assert.False(t, ok)
}

func TestMemoryCache_PutGet_WithinTTL(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(30*time.Second, WithClock(clk.Now))

	q := quote("TCS.NS", "3512.10")
	c.Put("TCS.NS", q)

	clk.Advance(29 * time.Second)
	got, ok := c.Get("TCS.NS")
	require.True(t, ok)
	assert.Equal(t, q, got)
}

// TestMemoryCache_Expiry は fetchInstant = now - TTL - 1s のエントリが存在しないものとして扱われることを検証します。
func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		wantHit bool
	}{
		{"just before ttl", 30*time.Second - time.Nanosecond, true},
		{"exactly ttl", 30 * time.Second, false},
		{"ttl plus one second", 31 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clk := &fakeClock{t: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
			c := NewMemoryCache(30*time.Second, WithClock(clk.Now))
			c.Put("INFY.NS", quote("INFY.NS", "1500"))

			clk.Advance(tt.elapsed)
			_, ok := c.Get("INFY.NS")
			assert.Equal(t, tt.wantHit, ok)
		})
	}
}

func TestMemoryCache_PutOverwrites(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(30*time.Second, WithClock(clk.Now))

	c.Put("TCS.NS", quote("TCS.NS", "3500"))
	clk.Advance(20 * time.Second)
	c.Put("TCS.NS", quote("TCS.NS", "3510"))
	clk.Advance(20 * time.Second)

	// The second Put resets the fetch instant.
	got, ok := c.Get("TCS.NS")
	require.True(t, ok)
	assert.True(t, got.Price.Decimal.Equal(decimal.RequireFromString("3510")))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Sweep(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(30*time.Second, WithClock(clk.Now))

	c.Put("OLD.NS", quote("OLD.NS", "1"))
	clk.Advance(31 * time.Second)
	c.Put("NEW.NS", quote("NEW.NS", "2"))

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("NEW.NS")
	assert.True(t, ok)
}

func TestMemoryCache_MaxItems(t *testing.T) {
	t.Parallel()

	t.Run("evicts oldest when full", func(t *testing.T) {
		t.Parallel()

		clk := &fakeClock{t: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
		c := NewMemoryCache(time.Minute, WithClock(clk.Now), WithMaxItems(2))

		c.Put("A.NS", quote("A.NS", "1"))
		clk.Advance(time.Second)
		c.Put("B.NS", quote("B.NS", "2"))
		clk.Advance(time.Second)
		c.Put("C.NS", quote("C.NS", "3"))

		assert.Equal(t, 2, c.Len())
		_, okA := c.Get("A.NS")
		_, okC := c.Get("C.NS")
		assert.False(t, okA)
		assert.True(t, okC)
	})

	t.Run("drops expired before fresh", func(t *testing.T) {
		t.Parallel()

		clk := &fakeClock{t: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
		c := NewMemoryCache(10*time.Second, WithClock(clk.Now), WithMaxItems(2))

		c.Put("A.NS", quote("A.NS", "1"))
		clk.Advance(5 * time.Second)
		c.Put("B.NS", quote("B.NS", "2"))
		clk.Advance(6 * time.Second) // A expired, B fresh
		c.Put("C.NS", quote("C.NS", "3"))

		_, okB := c.Get("B.NS")
		assert.True(t, okB)
		assert.Equal(t, 2, c.Len())
	})
}

func TestMemoryCache_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(time.Millisecond)
	c.Put("A.NS", quote("A.NS", "1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestMemoryCache_Concurrent は同一・異なるシンボルへの並行Get/Putでエントリが壊れないことを検証します。
func TestMemoryCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(time.Minute, WithMaxItems(8))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym := fmt.Sprintf("S%d.NS", i%4)
			for j := 0; j < 200; j++ {
				price := fmt.Sprintf("%d", j+1)
				c.Put(sym, quote(sym, price))
				if q, ok := c.Get(sym); ok {
					// A read always sees a whole entry written for this symbol.
					assert.Equal(t, sym, q.Symbol)
					assert.True(t, q.Price.Valid)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 8)
}
