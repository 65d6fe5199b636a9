package router

import (
	"sync"
	"time"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Ledger 为幂等结果账本。按 (venue, idempotency_key) 记录
// 已产生的交易结果，使重放的客户端请求不会重复触达场所。
// 超过时间窗口的终态条目会被驱逐；非终态条目永不驱逐，
// 订单终局未知时丢记录是不可接受的。
type Ledger struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[ledgerKey]ledgerEntry
}

type ledgerKey struct {
	venue trade.Venue
	key   string
}

type ledgerEntry struct {
	result   trade.Result
	storedAt time.Time
}

// NewLedger 创建账本。window<=0 时使用 10 分钟。
func NewLedger(window time.Duration) *Ledger {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &Ledger{
		window:  window,
		now:     time.Now,
		entries: make(map[ledgerKey]ledgerEntry),
	}
}

// Lookup 查询既有结果。查询前顺带驱逐过期条目。
func (l *Ledger) Lookup(v trade.Venue, key string) (trade.Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked()

	entry, ok := l.entries[ledgerKey{venue: v, key: key}]
	if !ok {
		return trade.Result{}, false
	}
	return entry.result, true
}

// Record 写入或覆盖结果。后台轮询在订单终局后用终态结果
// 覆盖先前的 pending 记录。
func (l *Ledger) Record(v trade.Venue, key string, result trade.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[ledgerKey{venue: v, key: key}] = ledgerEntry{
		result:   result,
		storedAt: l.now(),
	}
	l.evictLocked()
}

// Len 返回当前条目数量。
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) evictLocked() {
	cutoff := l.now().Add(-l.window)
	for k, e := range l.entries {
		if !e.result.Status.Terminal() {
			continue
		}
		if e.storedAt.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}
