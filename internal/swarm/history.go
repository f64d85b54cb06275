package swarm

import "github.com/ghost-swarm/ghost_swarm/internal/ledger"

// HistorySize bounds the in-memory transaction feed.
const HistorySize = 50

// History is a newest-first window over recent transactions. It is not safe for
// concurrent use; Session guards it.
type History struct {
	limit int
	items []ledger.Transaction
}

// NewHistory returns an empty window holding at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = HistorySize
	}
	return &History{limit: limit, items: make([]ledger.Transaction, 0, limit)}
}

// Reset replaces the window with txs, which must already be newest first.
func (h *History) Reset(txs []ledger.Transaction) {
	h.items = h.items[:0]
	for _, tx := range txs {
		if len(h.items) == h.limit {
			break
		}
		h.items = append(h.items, tx)
	}
}

// Push prepends tx and evicts the oldest entry beyond the limit.
func (h *History) Push(tx ledger.Transaction) {
	if len(h.items) < h.limit {
		h.items = append(h.items, ledger.Transaction{})
	}
	copy(h.items[1:], h.items[:len(h.items)-1])
	h.items[0] = tx
}

// Len returns the number of entries held.
func (h *History) Len() int { return len(h.items) }

// Snapshot copies the window, newest first.
func (h *History) Snapshot() []ledger.Transaction {
	out := make([]ledger.Transaction, len(h.items))
	copy(out, h.items)
	return out
}
