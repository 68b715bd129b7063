package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"spin-server/common/logger"
	"spin-server/internal/engine"
	"spin-server/internal/model"
	"spin-server/internal/wallet"

	decimal "github.com/shopspring/decimal"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	m.Run()
}

// ========== 测试替身 ==========

type fakeStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	wagers   map[string]map[string]any
	results  map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[string]decimal.Decimal),
		wagers:   make(map[string]map[string]any),
		results:  make(map[string][]byte),
	}
}

func (f *fakeStore) CacheWager(_ context.Context, playerID, operatorID, wagerID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wagers[operatorID+":"+playerID+":"+wagerID] = fields
	return nil
}

func (f *fakeStore) UpdateWager(_ context.Context, playerID, operatorID, wagerID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wagers[operatorID+":"+playerID+":"+wagerID]
	if !ok {
		return errors.New("wager not cached")
	}
	for k, v := range fields {
		w[k] = v
	}
	return nil
}

func (f *fakeStore) EvictWager(_ context.Context, playerID, operatorID, wagerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.wagers, operatorID+":"+playerID+":"+wagerID)
	return nil
}

func (f *fakeStore) GetBalance(_ context.Context, playerID, operatorID string) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.balances[operatorID+":"+playerID]
	return v, ok, nil
}

func (f *fakeStore) SetBalance(_ context.Context, playerID, operatorID string, v decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[operatorID+":"+playerID] = v
	return nil
}

func (f *fakeStore) CacheWagerResult(_ context.Context, wagerID string, payload []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[wagerID] = payload
	return nil
}

func (f *fakeStore) pendingWagers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.wagers)
}

type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]string
	denyAll  bool
	acquires int
	releases int
}

func newFakeGuard() *fakeGuard { return &fakeGuard{held: make(map[string]string)} }

func (f *fakeGuard) TryAcquire(_ context.Context, wagerID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyAll {
		return "", false, nil
	}
	if _, busy := f.held[wagerID]; busy {
		return "", false, nil
	}
	f.acquires++
	tok := fmt.Sprintf("tok-%d", f.acquires)
	f.held[wagerID] = tok
	return tok, true, nil
}

func (f *fakeGuard) Release(_ context.Context, wagerID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[wagerID] == token {
		delete(f.held, wagerID)
		f.releases++
	}
	return nil
}

type fakeWallet struct {
	mu           sync.Mutex
	debitCalls   []wallet.DebitRequest
	creditCalls  []wallet.CreditRequest
	rejectDebit  bool
	rejectCredit bool
}

func (f *fakeWallet) Debit(_ context.Context, req wallet.DebitRequest) (*wallet.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debitCalls = append(f.debitCalls, req)
	if f.rejectDebit {
		return &wallet.Result{Accepted: false, Msg: "risk control"}, nil
	}
	return &wallet.Result{Accepted: true}, nil
}

func (f *fakeWallet) Credit(_ context.Context, req wallet.CreditRequest) (*wallet.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditCalls = append(f.creditCalls, req)
	if f.rejectCredit {
		return &wallet.Result{Accepted: false, Msg: "account frozen"}, nil
	}
	return &wallet.Result{Accepted: true}, nil
}

// fakeDrawer 返回预置的开奖结果
type fakeDrawer struct {
	res   *engine.DrawResult
	err   error
	calls int
}

func (f *fakeDrawer) Draw(_ context.Context, stake decimal.Decimal, counter int64) (*engine.DrawResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.res
	r.WinAmount = stake.Mul(r.Multiplier).Round(2)
	r.Win = r.WinAmount.GreaterThan(decimal.Zero)
	r.NextCounter = counter + 1
	return &r, nil
}

type fakeRepo struct {
	mu        sync.Mutex
	inserted  []*model.Wager
	settled   []string
	outcomes  map[string]int8
	payouts   map[string]float64
	credits   map[string]int8
	outboxed  []string
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		outcomes: make(map[string]int8),
		payouts:  make(map[string]float64),
		credits:  make(map[string]int8),
	}
}

func (f *fakeRepo) InsertPending(_ context.Context, w *model.Wager) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, w)
	return f.insertErr
}

func (f *fakeRepo) UpdateSettled(_ context.Context, wagerID string, outcome int8, payout float64,
	_ []int, _, _ string, creditStatus int8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, wagerID)
	f.outcomes[wagerID] = outcome
	f.payouts[wagerID] = payout
	f.credits[wagerID] = creditStatus
	return nil
}

func (f *fakeRepo) CreateOutbox(_ context.Context, topic, bizKey string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outboxed = append(f.outboxed, topic+":"+bizKey)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
}

func (f *fakePublisher) Publish(topic string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.bodies = append(f.bodies, body)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	recv []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recv = append(r.recv, n)
}

func (r *recordingNotifier) actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, 0, len(r.recv))
	for _, n := range r.recv {
		out = append(out, n.Action)
	}
	return out
}

// ========== 测试脚手架 ==========

type harness struct {
	store    *fakeStore
	guard    *fakeGuard
	wallet   *fakeWallet
	drawer   *fakeDrawer
	repo     *fakeRepo
	pub      *fakePublisher
	notifier *recordingNotifier
	svc      BetService
}

func newHarness(res *engine.DrawResult) *harness {
	h := &harness{
		store:    newFakeStore(),
		guard:    newFakeGuard(),
		wallet:   &fakeWallet{},
		drawer:   &fakeDrawer{res: res},
		repo:     newFakeRepo(),
		pub:      &fakePublisher{},
		notifier: &recordingNotifier{},
	}
	h.svc = NewBetService(Deps{
		Store:    h.store,
		Guard:    h.guard,
		Wallet:   h.wallet,
		Engine:   h.drawer,
		Repo:     h.repo,
		Pub:      h.pub,
		Notifier: h.notifier,
		GameID:   "fruit777",
		Topic:    "spin_side_effect",
		StakeMin: decimal.NewFromInt(1),
		StakeMax: decimal.NewFromInt(1000),
	})
	return h
}

func fullHouseResult() *engine.DrawResult {
	return &engine.DrawResult{
		Symbols:    []int{0, 0, 0, 1, 1},
		Pattern:    "full_house",
		Multiplier: decimal.NewFromFloat(4.24),
	}
}

func loseResult() *engine.DrawResult {
	return &engine.DrawResult{
		Symbols:    []int{3, 4, 5, 6, 7},
		Pattern:    "no_match",
		Multiplier: decimal.Zero,
	}
}

func spin(h *harness, stake string) (*BetOutput, error) {
	return h.svc.PlaceBet(context.Background(), BetInput{
		PlayerID:    "p1001",
		OperatorID:  "op1",
		StakeAmount: stake,
		SourceIP:    "10.0.0.8",
		TraceID:     "trace-1",
	})
}

// ========== 正常流程 ==========

func TestPlaceBetWinSettlesBalance(t *testing.T) {
	h := newHarness(fullHouseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(100)

	out, err := spin(h, "10")
	if err != nil {
		t.Fatalf("PlaceBet error: %v", err)
	}
	if out.Outcome != "win" {
		t.Fatalf("expected win, got %s", out.Outcome)
	}
	if out.WinAmount != "42.40" {
		t.Fatalf("expected win amount 42.40, got %s", out.WinAmount)
	}
	if out.Balance != "132.40" {
		t.Fatalf("expected balance 132.40, got %s", out.Balance)
	}
	if out.CreditFailed {
		t.Fatalf("credit should not be failed")
	}

	if got := h.store.balances["op1:p1001"]; !got.Equal(decimal.NewFromFloat(132.4)) {
		t.Fatalf("stored balance = %s, want 132.4", got)
	}
	// 在途注单缓存应已驱逐
	if h.store.pendingWagers() != 0 {
		t.Fatalf("wager cache not evicted")
	}
	// 两次落库：pending 插入 + 终态更新
	if len(h.repo.inserted) != 1 || len(h.repo.settled) != 1 {
		t.Fatalf("persist writes = %d insert / %d settle, want 1/1", len(h.repo.inserted), len(h.repo.settled))
	}
	if h.repo.outcomes[out.WagerID] != model.OutcomeWin {
		t.Fatalf("persist outcome = %d, want win", h.repo.outcomes[out.WagerID])
	}
	if len(h.wallet.debitCalls) != 1 || len(h.wallet.creditCalls) != 1 {
		t.Fatalf("wallet calls = %d debit / %d credit, want 1/1", len(h.wallet.debitCalls), len(h.wallet.creditCalls))
	}
	if h.wallet.debitCalls[0].TxnID == h.wallet.creditCalls[0].TxnID {
		t.Fatalf("debit and credit must carry distinct txn ids")
	}
	// 侧效消息发了一条
	if len(h.pub.topics) != 1 || h.pub.topics[0] != "spin_side_effect" {
		t.Fatalf("side-effect topics = %v", h.pub.topics)
	}
	// 通知顺序：BetPlaced -> Win
	acts := h.notifier.actions()
	if len(acts) != 2 || acts[0] != ActionBetPlaced || acts[1] != ActionWin {
		t.Fatalf("notification sequence = %v", acts)
	}
	// 守卫已获取并释放
	if h.guard.acquires != 1 || h.guard.releases != 1 {
		t.Fatalf("guard acquires/releases = %d/%d", h.guard.acquires, h.guard.releases)
	}
}

func TestPlaceBetLoseStillNotifiesSettlement(t *testing.T) {
	h := newHarness(loseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(100)

	out, err := spin(h, "10")
	if err != nil {
		t.Fatalf("PlaceBet error: %v", err)
	}
	if out.Outcome != "lose" || out.WinAmount != "0.00" {
		t.Fatalf("outcome=%s win=%s", out.Outcome, out.WinAmount)
	}
	if out.Balance != "90.00" {
		t.Fatalf("balance = %s, want 90.00", out.Balance)
	}
	if len(h.wallet.creditCalls) != 0 {
		t.Fatalf("lose outcome must not credit")
	}
	acts := h.notifier.actions()
	if len(acts) != 2 || acts[1] != ActionWin {
		t.Fatalf("settlement notification missing on lose: %v", acts)
	}
	if h.repo.outcomes[out.WagerID] != model.OutcomeLose {
		t.Fatalf("persist outcome = %d, want lose", h.repo.outcomes[out.WagerID])
	}
}

// ========== 准入拒单 ==========

func TestPlaceBetInvalidStake(t *testing.T) {
	h := newHarness(fullHouseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(100)

	for _, bad := range []string{"abc", "", "-5", "0"} {
		if _, err := spin(h, bad); !errors.Is(err, ErrInvalidStake) {
			t.Fatalf("stake %q: err = %v, want ErrInvalidStake", bad, err)
		}
	}
	if _, err := spin(h, "0.5"); !errors.Is(err, ErrStakeOutOfRange) {
		t.Fatalf("below-min stake: err = %v, want ErrStakeOutOfRange", err)
	}
	if _, err := spin(h, "5000"); !errors.Is(err, ErrStakeOutOfRange) {
		t.Fatalf("above-max stake: err = %v, want ErrStakeOutOfRange", err)
	}
	if len(h.wallet.debitCalls) != 0 {
		t.Fatalf("rejected stakes must not reach the wallet")
	}
}

func TestPlaceBetPlayerStateMissingIsHardStop(t *testing.T) {
	h := newHarness(fullHouseResult())
	// 故意不写余额快照

	_, err := spin(h, "10")
	if !errors.Is(err, ErrPlayerStateNotFound) {
		t.Fatalf("err = %v, want ErrPlayerStateNotFound", err)
	}
	if len(h.wallet.debitCalls) != 0 || h.drawer.calls != 0 {
		t.Fatalf("missing state must stop before debit and draw")
	}
}

func TestPlaceBetInsufficientBalanceSkipsDebit(t *testing.T) {
	h := newHarness(fullHouseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(5)

	_, err := spin(h, "10")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if len(h.wallet.debitCalls) != 0 {
		t.Fatalf("insufficient balance must not issue a debit")
	}
	if got := h.store.balances["op1:p1001"]; !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("balance mutated on rejection: %s", got)
	}
}

// ========== 上游拒绝 ==========

func TestPlaceBetDebitRejectedAbortsBeforeDraw(t *testing.T) {
	h := newHarness(fullHouseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(100)
	h.wallet.rejectDebit = true

	_, err := spin(h, "10")
	if !errors.Is(err, ErrDebitRejected) {
		t.Fatalf("err = %v, want ErrDebitRejected", err)
	}
	if h.drawer.calls != 0 {
		t.Fatalf("debit rejection must stop before the draw")
	}
	if h.store.pendingWagers() != 0 {
		t.Fatalf("cached wager must be rolled back")
	}
	if got := h.store.balances["op1:p1001"]; !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance mutated on debit rejection: %s", got)
	}
	// 只有 Error 通知
	acts := h.notifier.actions()
	if len(acts) != 1 || acts[0] != ActionError {
		t.Fatalf("notifications = %v", acts)
	}
}

func TestPlaceBetCreditRejectedStillCompletes(t *testing.T) {
	h := newHarness(fullHouseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(100)
	h.wallet.rejectCredit = true

	out, err := spin(h, "10")
	if err != nil {
		t.Fatalf("credit rejection must not fail the wager: %v", err)
	}
	if out.Outcome != "win" {
		t.Fatalf("computed outcome must stand, got %s", out.Outcome)
	}
	if !out.CreditFailed {
		t.Fatalf("credit failure must be surfaced")
	}
	// 终态仍落库，派彩金额按计算结果记录
	if h.repo.credits[out.WagerID] != model.CreditFailed {
		t.Fatalf("credit status = %d, want failed", h.repo.credits[out.WagerID])
	}
	if h.repo.payouts[out.WagerID] != 42.4 {
		t.Fatalf("persisted payout = %v, want 42.4", h.repo.payouts[out.WagerID])
	}
	// 对账事件已入 outbox
	if len(h.repo.outboxed) != 1 {
		t.Fatalf("reconciliation outbox rows = %d, want 1", len(h.repo.outboxed))
	}
	// 派彩未到账，余额快照不应加上奖金
	if out.Balance != "90.00" {
		t.Fatalf("balance = %s, want 90.00 (payout not credited)", out.Balance)
	}
}

// ========== 并发守卫 ==========

func TestPlaceBetGuardContention(t *testing.T) {
	h := newHarness(fullHouseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(100)
	h.guard.denyAll = true

	_, err := spin(h, "10")
	if !errors.Is(err, ErrAlreadyProcessing) {
		t.Fatalf("err = %v, want ErrAlreadyProcessing", err)
	}
	// 守卫未获取就不能结算
	if len(h.repo.settled) != 0 || len(h.wallet.creditCalls) != 0 {
		t.Fatalf("settlement must not proceed without the guard")
	}
}

// 结算锁在终态落库后立刻释放，不应横跨结算通知/缓存驱逐
func TestGuardReleasedBeforeSettlementNotify(t *testing.T) {
	h := newHarness(fullHouseResult())
	h.store.balances["op1:p1001"] = decimal.NewFromInt(100)

	obs := &guardObservingNotifier{guard: h.guard}
	h.svc = NewBetService(Deps{
		Store:    h.store,
		Guard:    h.guard,
		Wallet:   h.wallet,
		Engine:   h.drawer,
		Repo:     h.repo,
		Pub:      h.pub,
		Notifier: obs,
		GameID:   "fruit777",
		Topic:    "spin_side_effect",
		StakeMin: decimal.NewFromInt(1),
		StakeMax: decimal.NewFromInt(1000),
	})

	if _, err := spin(h, "10"); err != nil {
		t.Fatalf("spin: %v", err)
	}
	if !obs.sawWin {
		t.Fatalf("settlement notification not emitted")
	}
	if obs.heldAtWin {
		t.Fatalf("settle lock still held when settlement notification fired")
	}
}

// guardObservingNotifier 在收到结算通知时记录锁是否仍被持有
type guardObservingNotifier struct {
	guard     *fakeGuard
	sawWin    bool
	heldAtWin bool
}

func (n *guardObservingNotifier) Notify(v Notification) {
	if v.Action != ActionWin {
		return
	}
	n.sawWin = true
	n.guard.mu.Lock()
	n.heldAtWin = len(n.guard.held) > 0
	n.guard.mu.Unlock()
}

// 同一注单的并发 TryAcquire 恰好一个成功；
// 输家用自己的（空）token 释放不能解掉赢家的锁。
func TestGuardConcurrentAcquireExactlyOne(t *testing.T) {
	g := newFakeGuard()
	ctx := context.Background()
	const workers = 16

	var wg sync.WaitGroup
	tokens := make([]string, workers)
	oks := make([]bool, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tok, ok, err := g.TryAcquire(ctx, "SPW-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			tokens[i], oks[i] = tok, ok
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	winnerTok := ""
	for i := range oks {
		if oks[i] {
			winners++
			winnerTok = tokens[i]
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	// 输家释放（token 不匹配）不得解锁
	for i := range oks {
		if !oks[i] {
			_ = g.Release(ctx, "SPW-1", tokens[i])
		}
	}
	if _, ok, _ := g.TryAcquire(ctx, "SPW-1"); ok {
		t.Fatalf("lock freed by non-holder release")
	}

	// 赢家释放后才可再次获取
	if err := g.Release(ctx, "SPW-1", winnerTok); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := g.TryAcquire(ctx, "SPW-1"); !ok {
		t.Fatalf("lock not reacquirable after holder release")
	}
}

// ========== 余额灌入 ==========

// 首次开通灌入初始余额；已有快照（含 0 余额）绝不覆盖
func TestEnsureBalanceSeed(t *testing.T) {
	st := newFakeStore()
	ctx := context.Background()
	initial := decimal.NewFromInt(1000)

	seeded, err := EnsureBalanceSeed(ctx, st, "p1001", "op1", initial)
	if err != nil || !seeded {
		t.Fatalf("seeded=%v err=%v, want first call to seed", seeded, err)
	}
	if got := st.balances["op1:p1001"]; !got.Equal(initial) {
		t.Fatalf("balance = %s, want %s", got, initial)
	}

	// 再次开通不覆盖
	st.balances["op1:p1001"] = decimal.NewFromInt(37)
	seeded, err = EnsureBalanceSeed(ctx, st, "p1001", "op1", initial)
	if err != nil || seeded {
		t.Fatalf("seeded=%v err=%v, existing snapshot must not be overwritten", seeded, err)
	}
	if got := st.balances["op1:p1001"]; !got.Equal(decimal.NewFromInt(37)) {
		t.Fatalf("balance overwritten to %s", got)
	}

	// 余额为 0 也是已有快照
	st.balances["op1:p2"] = decimal.Zero
	seeded, _ = EnsureBalanceSeed(ctx, st, "p2", "op1", initial)
	if seeded {
		t.Fatalf("zero balance is an existing snapshot, must not reseed")
	}
}

// ========== 其他 ==========

func TestGenerateWagerNoShape(t *testing.T) {
	no := generateWagerNo("p1001")
	if len(no) != 23 {
		t.Fatalf("wager no %q length = %d, want 23", no, len(no))
	}
	if no[:2] != "SP" {
		t.Fatalf("wager no %q must start with SP", no)
	}

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		n := generateWagerNo("p1001")
		seen[n] = true
	}
	if len(seen) < 150 {
		t.Fatalf("wager no collision rate too high: %d unique of 200", len(seen))
	}
}
