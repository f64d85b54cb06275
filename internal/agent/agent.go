// Package agent keeps the in-memory roster of simulated swarm agents.
package agent

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ghost-swarm/ghost_swarm/internal/earning"
	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

// DefaultCount is the roster size when no prior activity names any agents.
const DefaultCount = 42

var names = [...]string{
	"AlphaBot", "BetaFlux", "GammaWave", "DeltaCore", "EpsilonAI", "ZetaBot", "EtaNet", "ThetaMind",
	"IotaSynergy", "KappaAI", "LambdaCore", "MuNet", "NuFlux", "XiBot", "OmicronAI", "PiWave",
	"RhoSynergy", "SigmaMind", "TauBot", "UpsilonNet", "PhiFlux", "ChiCore", "PsiAI", "OmegaWave",
}

// Agent is an ephemeral simulated actor that transactions are attributed to.
type Agent struct {
	ID       string
	Name     string
	Earnings money.Cents
	Method   string
}

// ID returns the identifier of the i-th agent.
func ID(i int) string { return fmt.Sprintf("agent_%d", i) }

// Name returns the display name of the i-th agent, cycling through the catalog.
func Name(i int) string { return names[i%len(names)] + strconv.Itoa(i) }

// Picker is the randomness a roster needs.
type Picker interface {
	Intn(n int) int
}

// Roster is a concurrency-safe, append-only list of agents.
type Roster struct {
	mu     sync.RWMutex
	agents []Agent
	index  map[string]int
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{index: make(map[string]int)}
}

// Seed resets the roster to one idle agent per distinct id seen in recent activity,
// or DefaultCount idle agents when there were none.
func (r *Roster) Seed(seenAgentIDs []string) {
	distinct := make(map[string]struct{}, len(seenAgentIDs))
	for _, id := range seenAgentIDs {
		distinct[id] = struct{}{}
	}
	count := len(distinct)
	if count == 0 {
		count = DefaultCount
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = r.agents[:0]
	r.index = make(map[string]int, count)
	r.appendLocked(count, earning.MethodIdle)
}

// Add appends n agents with sequential ids and names continuing from the current
// size, all working method.
func (r *Roster) Add(n int, method string) []Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := len(r.agents)
	r.appendLocked(n, method)
	out := make([]Agent, n)
	copy(out, r.agents[start:])
	return out
}

func (r *Roster) appendLocked(n int, method string) {
	start := len(r.agents)
	for i := start; i < start+n; i++ {
		a := Agent{ID: ID(i), Name: Name(i), Method: method}
		r.index[a.ID] = len(r.agents)
		r.agents = append(r.agents, a)
	}
}

// Len returns the number of agents.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Pick returns a uniformly chosen agent. ok is false on an empty roster.
func (r *Roster) Pick(p Picker) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.agents) == 0 {
		return Agent{}, false
	}
	return r.agents[p.Intn(len(r.agents))], true
}

// AssignIfUnset gives the agent method unless it already works a real one, and
// returns the agent afterwards.
func (r *Roster) AssignIfUnset(id, method string) (Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return Agent{}, false
	}
	if !earning.Assigned(r.agents[i].Method) {
		r.agents[i].Method = method
	}
	return r.agents[i], true
}

// Credit adds amount to the agent's running total. Unknown ids are ignored, which
// happens when a roster was reseeded while an earning was in flight.
func (r *Roster) Credit(id string, amount money.Cents) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[id]; ok {
		r.agents[i].Earnings += amount
	}
}

// Get returns the agent with id.
func (r *Roster) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return Agent{}, false
	}
	return r.agents[i], true
}

// Leaderboard returns up to n agents ordered by earnings, highest first.
func (r *Roster) Leaderboard(n int) []Agent {
	r.mu.RLock()
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Earnings != out[j].Earnings {
			return out[i].Earnings > out[j].Earnings
		}
		return lessID(out[i].ID, out[j].ID)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// lessID orders agent_2 before agent_10.
func lessID(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimPrefix(a, "agent_"))
	nb, errB := strconv.Atoi(strings.TrimPrefix(b, "agent_"))
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
