package engine

import (
	"context"
	"errors"
	"os"
	"testing"

	"spin-server/common/logger"

	decimal "github.com/shopspring/decimal"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

// fakeControl 记录调用次数并返回预设的应答
type fakeControl struct {
	calls int
	dec   *ControlDecision
	err   error
}

func (f *fakeControl) Query(ctx context.Context, gameID string, count int64) (*ControlDecision, error) {
	f.calls++
	return f.dec, f.err
}

// constRand 返回固定值的随机函数（对 n 取模保证合法）
func constRand(v int) func(n int) int {
	return func(n int) int { return v % n }
}

func newTestEngine(threshold int64, ctrl ControlClient, rnd func(n int) int) *Engine {
	e := New("fruit777", threshold, ctrl, nil)
	e.rnd = rnd
	return e
}

func TestDrawBelowThresholdSkipsControl(t *testing.T) {
	ctrl := &fakeControl{dec: &ControlDecision{Control: true}}
	e := newTestEngine(30, ctrl, constRand(0))

	res, err := e.Draw(context.Background(), decimal.NewFromInt(10), 29)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if ctrl.calls != 0 {
		t.Fatalf("control queried %d times below threshold", ctrl.calls)
	}
	if res.ControlConsulted {
		t.Fatalf("control should not be consulted")
	}
	if res.NextCounter != 30 {
		t.Fatalf("next counter=%d, want 30", res.NextCounter)
	}
}

func TestDrawAtThresholdConsultsExactlyOnce(t *testing.T) {
	ctrl := &fakeControl{dec: &ControlDecision{Control: false}}
	e := newTestEngine(30, ctrl, constRand(0))

	res, err := e.Draw(context.Background(), decimal.NewFromInt(10), 31)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if ctrl.calls != 1 {
		t.Fatalf("control queried %d times, want 1", ctrl.calls)
	}
	if !res.ControlConsulted {
		t.Fatalf("control should be consulted at counter=31")
	}
	// "不控"应答：计数器清零
	if res.NextCounter != 0 {
		t.Fatalf("next counter=%d, want 0", res.NextCounter)
	}
}

func TestControlAppliesForcedLossTable(t *testing.T) {
	ctrl := &fakeControl{dec: &ControlDecision{Control: true, Probability: decimal.Zero}}
	// 固定随机值 50 落在每个控盘转轮的主力符号上，五个符号互不相同
	e := newTestEngine(30, ctrl, constRand(50))

	res, err := e.Draw(context.Background(), decimal.NewFromInt(10), 31)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	want := []int{3, 4, 5, 6, 7}
	for i, s := range res.Symbols {
		if s != want[i] {
			t.Fatalf("symbols=%v, want %v", res.Symbols, want)
		}
	}
	if res.Win || !res.Multiplier.IsZero() {
		t.Fatalf("forced-loss draw should lose, got win=%v mult=%s", res.Win, res.Multiplier)
	}
	if res.NextCounter != 0 {
		t.Fatalf("next counter=%d, want 0", res.NextCounter)
	}
}

func TestControlUnreachableKeepsFirstDraw(t *testing.T) {
	ctrl := &fakeControl{err: errors.New("connection refused")}
	e := newTestEngine(30, ctrl, constRand(0))

	res, err := e.Draw(context.Background(), decimal.NewFromInt(10), 40)
	if err != nil {
		t.Fatalf("draw must not fail on control outage: %v", err)
	}
	// constRand(0) 在常规表上每轮都抽符号 0：五条
	for _, s := range res.Symbols {
		if s != 0 {
			t.Fatalf("first draw should be kept, symbols=%v", res.Symbols)
		}
	}
	if res.ControlConsulted {
		t.Fatalf("unreachable control must count as not consulted")
	}
	if res.NextCounter != 41 {
		t.Fatalf("next counter=%d, want 41", res.NextCounter)
	}
}

func TestWinAmountIsStakeTimesMultiplier(t *testing.T) {
	e := newTestEngine(30, nil, constRand(0))
	stake := decimal.NewFromInt(10)

	res, err := e.Draw(context.Background(), stake, 0)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	want := stake.Mul(res.Multiplier).Round(2)
	if !res.WinAmount.Equal(want) {
		t.Fatalf("win amount=%s, want %s", res.WinAmount, want)
	}
	if res.Win != res.WinAmount.GreaterThan(decimal.Zero) {
		t.Fatalf("win flag inconsistent with amount %s", res.WinAmount)
	}
}

func TestReelTableWeightsSumUsable(t *testing.T) {
	for i, tb := range normalReels {
		if tb.total <= 0 {
			t.Fatalf("reel %d has non-positive total weight", i)
		}
	}
	for i, tb := range forcedLossReels {
		if tb.total <= 0 {
			t.Fatalf("forced-loss reel %d has non-positive total weight", i)
		}
	}
}
