package rewards

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"farmfleet.dev/internal/gameclock"
	"farmfleet.dev/internal/protocol"
)

func clockAt(t0 *time.Time) *gameclock.Clock {
	return gameclock.NewAt(func() time.Time { return *t0 })
}

func TestLedgerRunsOncePerDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLedger(NewMemoryStore(), "acct", clockAt(&now))

	runs := 0
	fn := func(context.Context) error { runs++; return nil }

	for i := 0; i < 3; i++ {
		if _, err := l.Run(context.Background(), "feat", fn); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	if runs != 1 {
		t.Fatalf("same day ran %d times", runs)
	}

	now = now.Add(24 * time.Hour)
	if ran, _ := l.Run(context.Background(), "feat", fn); !ran {
		t.Fatalf("next day did not run")
	}
	if runs != 2 {
		t.Fatalf("runs = %d", runs)
	}
}

func TestLedgerFailedAttemptStillCountsForTheDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLedger(NewMemoryStore(), "acct", clockAt(&now))

	ran, err := l.Run(context.Background(), "feat", func(context.Context) error {
		return errors.New("server said no")
	})
	if !ran || err == nil {
		t.Fatalf("first attempt: ran=%v err=%v", ran, err)
	}
	// The failure burned today's attempt.
	if ran, _ := l.Run(context.Background(), "feat", func(context.Context) error { return nil }); ran {
		t.Fatalf("failed attempt was retried same day")
	}
}

func TestLedgerFeaturesAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewLedger(NewMemoryStore(), "acct", clockAt(&now))
	if ran, _ := l.Run(context.Background(), "a", func(context.Context) error { return nil }); !ran {
		t.Fatalf("feature a did not run")
	}
	if ran, _ := l.Run(context.Background(), "b", func(context.Context) error { return nil }); !ran {
		t.Fatalf("feature b blocked by feature a")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "daily.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if day, err := s.LastAttempt("acct", "feat"); err != nil || day != "" {
		t.Fatalf("fresh store: %q %v", day, err)
	}
	if err := s.MarkAttempt("acct", "feat", "2026-03-01"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkAttempt("acct", "feat", "2026-03-02"); err != nil {
		t.Fatalf("remark: %v", err)
	}
	if day, _ := s.LastAttempt("acct", "feat"); day != "2026-03-02" {
		t.Fatalf("day = %q", day)
	}
	if day, _ := s.LastAttempt("other", "feat"); day != "" {
		t.Fatalf("accounts not isolated: %q", day)
	}
}

func TestSQLiteVisitStatsRoundTrip(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "daily.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if m, err := s.LoadVisitStats("acct"); err != nil || len(m) != 0 {
		t.Fatalf("fresh store: %v %v", m, err)
	}

	in := map[uint64][]bool{
		7:  {true, false, true},
		11: {false},
	}
	if err := s.SaveVisitStats("acct", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := s.LoadVisitStats("acct")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 2 || len(out[7]) != 3 || out[7][1] || !out[7][2] || out[11][0] {
		t.Fatalf("round trip mangled outcomes: %v", out)
	}

	// A later save replaces the account's history wholesale.
	if err := s.SaveVisitStats("acct", map[uint64][]bool{7: {true}}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	out, _ = s.LoadVisitStats("acct")
	if len(out) != 1 || len(out[7]) != 1 {
		t.Fatalf("stale rows survived: %v", out)
	}
	if m, _ := s.LoadVisitStats("other"); len(m) != 0 {
		t.Fatalf("accounts not isolated: %v", m)
	}
}

type fakeRewardServer struct {
	mu        sync.Mutex
	purchased []int64
	claimed   []int64
	monthCard []int64
	albumHits int
	used      []protocol.UseItemRequest
	taskIDs   []int64
	claimedTk [][]int64
}

func (f *fakeRewardServer) Call(ctx context.Context, service, method string, req, reply any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch method {
	case protocol.MethodMallList:
		*reply.(*protocol.MallListReply) = protocol.MallListReply{Goods: []protocol.MallGoods{
			{GoodsID: 1, IsFree: true},
			{GoodsID: 2, IsFree: false},
			{GoodsID: 3, IsFree: true},
		}}
	case protocol.MethodPurchase:
		f.purchased = append(f.purchased, req.(protocol.PurchaseRequest).GoodsID)
	case protocol.MethodMailList:
		*reply.(*protocol.MailListReply) = protocol.MailListReply{Mails: []protocol.Mail{
			{ID: 11, HasReward: true},
			{ID: 12, HasReward: true, Claimed: true},
			{ID: 13},
		}}
	case protocol.MethodClaimMail:
		f.claimed = append(f.claimed, req.(protocol.ClaimMailRequest).MailID)
	case protocol.MethodMonthCardInfos:
		*reply.(*protocol.MonthCardInfosReply) = protocol.MonthCardInfosReply{Infos: []protocol.MonthCardInfo{
			{GoodsID: 21, CanClaim: true},
			{GoodsID: 22},
		}}
	case protocol.MethodClaimMonthCard:
		f.monthCard = append(f.monthCard, req.(protocol.ClaimMonthCardRequest).GoodsID)
	case protocol.MethodAlbumClaimAll:
		f.albumHits++
	case protocol.MethodBag:
		*reply.(*protocol.BagReply) = protocol.BagReply{Items: []protocol.Item{
			{ID: protocol.ContainerNormal, Count: 120},
			{ID: 1030001, Count: 7},
			{ID: protocol.ContainerOrganic, Count: 0},
		}}
	case protocol.MethodUse:
		f.used = append(f.used, req.(protocol.UseItemRequest))
	case protocol.MethodTaskInfo:
		tasks := make([]protocol.Task, 0, len(f.taskIDs))
		for _, id := range f.taskIDs {
			tasks = append(tasks, protocol.Task{ID: id, Status: protocol.TaskClaimable})
		}
		tasks = append(tasks, protocol.Task{ID: 999, Status: protocol.TaskInProgress})
		*reply.(*protocol.TaskInfoReply) = protocol.TaskInfoReply{Tasks: tasks}
	case protocol.MethodClaimTasks:
		f.claimedTk = append(f.claimedTk, req.(protocol.ClaimTasksRequest).TaskIDs)
	}
	return nil
}

func TestDailyRunAllClaimsEverythingDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := &fakeRewardServer{}
	d := NewDaily(f, NewLedger(NewMemoryStore(), "acct", clockAt(&now)), log.New(io.Discard, "", 0))

	d.RunAll(context.Background())

	if len(f.purchased) != 2 || f.purchased[0] != 1 || f.purchased[1] != 3 {
		t.Fatalf("free packs: %v", f.purchased)
	}
	// Two mailbox types, each listing mail 11 as unclaimed.
	if len(f.claimed) != 2 || f.claimed[0] != 11 {
		t.Fatalf("mail claims: %v", f.claimed)
	}
	if len(f.monthCard) != 1 || f.monthCard[0] != 21 {
		t.Fatalf("month cards: %v", f.monthCard)
	}
	if f.albumHits != 1 {
		t.Fatalf("album hits: %d", f.albumHits)
	}
	if len(f.used) != 1 || f.used[0].ItemID != protocol.ContainerNormal || f.used[0].Count != 120 {
		t.Fatalf("fertilizer use: %+v", f.used)
	}

	// Second sweep the same day is a no-op.
	d.RunAll(context.Background())
	if len(f.purchased) != 2 || f.albumHits != 1 {
		t.Fatalf("second sweep re-claimed: %v / %d", f.purchased, f.albumHits)
	}
}

func TestTaskLoopClaimsBatch(t *testing.T) {
	f := &fakeRewardServer{taskIDs: []int64{1, 2, 3}}
	tl := NewTaskLoop(f, time.Minute, log.New(io.Discard, "", 0))
	n, err := tl.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 3 || len(f.claimedTk) != 1 || len(f.claimedTk[0]) != 3 {
		t.Fatalf("claimed %d / %v", n, f.claimedTk)
	}
}

func TestTaskLoopNothingClaimable(t *testing.T) {
	f := &fakeRewardServer{}
	tl := NewTaskLoop(f, time.Minute, log.New(io.Discard, "", 0))
	n, err := tl.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("idle sweep: n=%d err=%v", n, err)
	}
	if len(f.claimedTk) != 0 {
		t.Fatalf("claim sent with nothing claimable")
	}
}
