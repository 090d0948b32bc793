package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeEngine struct {
	calls      atomic.Int32
	inFlight   atomic.Int32
	maxParallel atomic.Int32
	delay      time.Duration
	err        error
	panics     bool
}

func (f *fakeEngine) RunTick(ctx context.Context, _ time.Time) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxParallel.Load()
		if cur <= seen || f.maxParallel.CompareAndSwap(seen, cur) {
			break
		}
	}
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.delay):
		}
	}
	return f.err
}

type fakeGuard struct {
	acquired bool
	err      error
	calls    atomic.Int32
}

func (g *fakeGuard) Acquire(context.Context, string, time.Duration) (bool, error) {
	g.calls.Add(1)
	return g.acquired, g.err
}

func runDriver(t *testing.T, d *Driver, dur time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), dur)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(dur + time.Second):
		t.Fatal("драйвер не остановился после отмены контекста")
	}
}

func TestDriverRunsTicksUntilCancelled(t *testing.T) {
	engine := &fakeEngine{}
	d := NewDriver(engine, nil, 5*time.Millisecond, time.UTC, zerolog.Nop())

	runDriver(t, d, 100*time.Millisecond)

	if engine.calls.Load() < 2 {
		t.Fatalf("ожидали минимум 2 тика, получили %d", engine.calls.Load())
	}
}

func TestDriverNeverOverlapsTicks(t *testing.T) {
	engine := &fakeEngine{delay: 20 * time.Millisecond}
	d := NewDriver(engine, nil, time.Millisecond, time.UTC, zerolog.Nop())

	runDriver(t, d, 150*time.Millisecond)

	if engine.maxParallel.Load() > 1 {
		t.Fatalf("тики не должны перекрываться, максимум параллельных: %d", engine.maxParallel.Load())
	}
}

func TestDriverSurvivesTickError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("БД недоступна")}
	d := NewDriver(engine, nil, 5*time.Millisecond, time.UTC, zerolog.Nop())

	runDriver(t, d, 100*time.Millisecond)

	if engine.calls.Load() < 2 {
		t.Fatalf("ошибка тика не должна останавливать драйвер, тиков: %d", engine.calls.Load())
	}
}

func TestDriverSurvivesTickPanic(t *testing.T) {
	engine := &fakeEngine{panics: true}
	d := NewDriver(engine, nil, 5*time.Millisecond, time.UTC, zerolog.Nop())

	runDriver(t, d, 100*time.Millisecond)

	if engine.calls.Load() < 2 {
		t.Fatalf("паника тика не должна останавливать драйвер, тиков: %d", engine.calls.Load())
	}
}

func TestDriverSkipsTickWhenGuardHeld(t *testing.T) {
	engine := &fakeEngine{}
	guard := &fakeGuard{acquired: false}
	d := NewDriver(engine, guard, 5*time.Millisecond, time.UTC, zerolog.Nop())

	runDriver(t, d, 60*time.Millisecond)

	if guard.calls.Load() == 0 {
		t.Fatal("guard не вызывался")
	}
	if engine.calls.Load() != 0 {
		t.Fatalf("при занятом guard тики выполняться не должны: %d", engine.calls.Load())
	}
}

func TestDriverRunsWhenGuardFails(t *testing.T) {
	engine := &fakeEngine{}
	guard := &fakeGuard{err: errors.New("redis недоступен")}
	d := NewDriver(engine, guard, 5*time.Millisecond, time.UTC, zerolog.Nop())

	runDriver(t, d, 60*time.Millisecond)

	if engine.calls.Load() == 0 {
		t.Fatal("отказ guard не должен блокировать рассылку")
	}
}
