package risk

import (
	"context"
	"testing"
	"time"

	"cryptopump-bot/internal/strategy"
)

type fakeHistory struct {
	open   int
	closed []ClosedTrade
}

func (f *fakeHistory) OpenTradeCount(ctx context.Context) (int, error) {
	return f.open, nil
}

func (f *fakeHistory) ClosedTradesSince(ctx context.Context, since time.Time) ([]ClosedTrade, error) {
	out := make([]ClosedTrade, 0, len(f.closed))
	for _, t := range f.closed {
		if !t.ClosedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeGuard struct{ exceeded bool }

func (f *fakeGuard) DailyLossExceeded() bool { return f.exceeded }

func closes(kind strategy.Kind, pnls ...float64) []ClosedTrade {
	now := time.Now()
	out := make([]ClosedTrade, len(pnls))
	for i, pnl := range pnls {
		out[i] = ClosedTrade{
			Strategy: kind,
			PnL:      pnl,
			ClosedAt: now.Add(-time.Duration(len(pnls)-i) * time.Minute),
		}
	}
	return out
}

func goodPump() *strategy.PumpSignal {
	return &strategy.PumpSignal{
		Symbol:             "BTCUSDT",
		QualityScore:       85,
		PriceChangePercent: 5,
		TimeWindowSeconds:  300,
	}
}

func newTestGate(h *fakeHistory, g *fakeGuard) *Gate {
	return NewGate(GateConfig{MaxConcurrentTrades: 3}, h, g)
}

func TestAdmitPumpQualityThreshold(t *testing.T) {
	gate := newTestGate(&fakeHistory{}, &fakeGuard{})

	sig := goodPump()
	sig.QualityScore = 65
	if ok, reason := gate.AdmitPump(context.Background(), sig); ok {
		t.Errorf("quality 65 must be rejected, got admitted (%s)", reason)
	}
}

func TestAdmitPumpExtremeMoveCap(t *testing.T) {
	gate := newTestGate(&fakeHistory{}, &fakeGuard{})

	sig := goodPump()
	sig.PriceChangePercent = 18
	if ok, _ := gate.AdmitPump(context.Background(), sig); ok {
		t.Error("moves beyond 15% must be rejected")
	}
}

func TestAdmitRespectsConcurrencyCap(t *testing.T) {
	gate := newTestGate(&fakeHistory{open: 3}, &fakeGuard{})

	if ok, reason := gate.AdmitPump(context.Background(), goodPump()); ok {
		t.Errorf("expected concurrency rejection, got admitted (%s)", reason)
	}
	if ok, _ := gate.AdmitMover(context.Background()); ok {
		t.Error("mover admission must respect the concurrency cap too")
	}
}

func TestAdmitRespectsDailyLossCap(t *testing.T) {
	gate := newTestGate(&fakeHistory{}, &fakeGuard{exceeded: true})

	if ok, _ := gate.AdmitPump(context.Background(), goodPump()); ok {
		t.Error("daily loss cap must reject pump admission")
	}
	if ok, _ := gate.AdmitMover(context.Background()); ok {
		t.Error("daily loss cap must reject mover admission")
	}
}

func TestPumpCooldownAfterThreeLosses(t *testing.T) {
	gate := newTestGate(&fakeHistory{closed: closes(strategy.KindPump, -5, -3, -1)}, &fakeGuard{})
	if ok, _ := gate.AdmitPump(context.Background(), goodPump()); ok {
		t.Error("three consecutive pump losses must trigger cooldown")
	}

	gate = newTestGate(&fakeHistory{closed: closes(strategy.KindPump, -5, -3)}, &fakeGuard{})
	if ok, reason := gate.AdmitPump(context.Background(), goodPump()); !ok {
		t.Errorf("two pump losses must not trigger cooldown: %s", reason)
	}
}

func TestMoverCooldownAfterTwoLosses(t *testing.T) {
	gate := newTestGate(&fakeHistory{closed: closes(strategy.KindTopMover, -5, -3)}, &fakeGuard{})
	if ok, _ := gate.AdmitMover(context.Background()); ok {
		t.Error("two consecutive mover losses must trigger cooldown")
	}

	gate = newTestGate(&fakeHistory{closed: closes(strategy.KindTopMover, -5)}, &fakeGuard{})
	if ok, reason := gate.AdmitMover(context.Background()); !ok {
		t.Errorf("one mover loss must not trigger cooldown: %s", reason)
	}
}

func TestCooldownStaysActiveAfterLaterWin(t *testing.T) {
	// The streak reached the threshold earlier in the window; a later win
	// does not clear the cooldown.
	gate := newTestGate(&fakeHistory{closed: closes(strategy.KindPump, -5, -3, -1, 10)}, &fakeGuard{})
	if ok, _ := gate.AdmitPump(context.Background(), goodPump()); ok {
		t.Error("cooldown must persist once the loss streak was reached in the window")
	}
}

func TestWinResetsLossStreak(t *testing.T) {
	gate := newTestGate(&fakeHistory{closed: closes(strategy.KindPump, -5, -3, 10, -1, -2)}, &fakeGuard{})
	if ok, reason := gate.AdmitPump(context.Background(), goodPump()); !ok {
		t.Errorf("a win mid-window resets the streak: %s", reason)
	}
}

func TestCooldownIsPerStrategy(t *testing.T) {
	// Mover losses must not throttle pump admissions.
	gate := newTestGate(&fakeHistory{closed: closes(strategy.KindTopMover, -5, -3, -1)}, &fakeGuard{})
	if ok, reason := gate.AdmitPump(context.Background(), goodPump()); !ok {
		t.Errorf("mover losses must not cool down pumps: %s", reason)
	}
}

func TestCooldownIgnoresTradesOutsideWindow(t *testing.T) {
	old := closes(strategy.KindPump, -5, -3, -1)
	for i := range old {
		old[i].ClosedAt = time.Now().Add(-30 * time.Hour)
	}
	gate := newTestGate(&fakeHistory{closed: old}, &fakeGuard{})
	if ok, reason := gate.AdmitPump(context.Background(), goodPump()); !ok {
		t.Errorf("losses older than 24h must not count: %s", reason)
	}
}
