// Package earning produces randomized mock earning records for swarm agents.
package earning

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

const (
	// Kind is the only transaction kind the swarm produces.
	Kind = "earning"

	// MinAmount and MaxAmount bound every generated amount, inclusive.
	MinAmount money.Cents = 1
	MaxAmount money.Cents = 200

	// MethodIdle and MethodSearching mark agents without an assigned method.
	MethodIdle      = "Idle"
	MethodSearching = "Searching..."
)

// Methods is the fixed catalog of money-making methods an agent can work.
var Methods = [...]string{
	"Crypto Arbitrage",
	"Stock Micro-trading",
	"NFT Flipping",
	"Ad-Revenue Farming",
	"E-commerce Automation",
	"Lead Generation",
	"Content Creation",
	"Data Annotation",
	"Bug Bounty Hunting",
	"Affiliate Marketing",
}

// IsCatalogMethod reports whether m is one of Methods.
func IsCatalogMethod(m string) bool {
	for _, candidate := range Methods {
		if candidate == m {
			return true
		}
	}
	return false
}

// Assigned reports whether method names real work rather than a placeholder.
func Assigned(method string) bool {
	return method != "" && method != MethodIdle && method != MethodSearching
}

// Agent is the slice of agent state the generator needs.
type Agent struct {
	ID     string
	Method string
}

// Payload is an unsaved earning record.
type Payload struct {
	AgentID   string
	Amount    money.Cents
	Source    string
	Kind      string
	CreatedAt time.Time
}

// Generator draws amounts and methods from a seeded source. It is safe for
// concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator returns a generator seeded with seed. Equal seeds yield equal
// amount and source sequences.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

// WithClock replaces the timestamp source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	return g
}

// Generate returns a new earning for agent. The agent's method is used as the source
// when assigned, otherwise a catalog method is drawn.
func (g *Generator) Generate(agent Agent) Payload {
	g.mu.Lock()
	defer g.mu.Unlock()

	amount := MinAmount + money.Cents(g.rng.Int63n(int64(MaxAmount-MinAmount+1)))
	source := agent.Method
	if !Assigned(source) {
		source = Methods[g.rng.Intn(len(Methods))]
	}
	return Payload{
		AgentID:   agent.ID,
		Amount:    amount,
		Source:    source,
		Kind:      Kind,
		CreatedAt: g.now().UTC(),
	}
}

// RandomMethod draws a method uniformly from the catalog.
func (g *Generator) RandomMethod() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Methods[g.rng.Intn(len(Methods))]
}

// Intn returns a uniform int in [0, n). Callers use it for agent and batch selection
// so one seed drives the whole simulation.
func (g *Generator) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

// Between returns a uniform duration in [lo, hi].
func (g *Generator) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + time.Duration(g.rng.Int63n(int64(hi-lo)+1))
}
