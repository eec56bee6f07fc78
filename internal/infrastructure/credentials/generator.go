package credentials

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

var (
	adjectives = []string{"happy", "sunny", "bright", "smart", "kind", "brave", "cool", "nice"}
	animals    = []string{"cat", "dog", "bird", "fish", "bear", "lion", "fox", "owl"}
)

// Generator issues record ids, classroom-friendly passwords, usernames and linking codes.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator() *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededGenerator returns a generator with a reproducible sequence.
func NewSeededGenerator(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Generator) NewID() string {
	return uuid.NewString()
}

// Password returns adjective + animal + two digits, letters and digits only.
func (g *Generator) Password() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	adjective := adjectives[g.rnd.IntN(len(adjectives))]
	animal := animals[g.rnd.IntN(len(animals))]
	return fmt.Sprintf("%s%s%02d", adjective, animal, g.rnd.IntN(100))
}

// Username returns Capitalized first name + upper last initial + three digits, or "" when
// either name part is blank.
func (g *Generator) Username(firstName, lastInitial string) string {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastInitial) == "" {
		return ""
	}

	g.mu.Lock()
	digits := g.rnd.IntN(900) + 100
	g.mu.Unlock()

	return fmt.Sprintf("%s%s%d", domain.CapitalizeName(firstName), strings.ToUpper(strings.TrimSpace(lastInitial)), digits)
}

// LinkingCode returns a six digit code for connecting existing accounts.
func (g *Generator) LinkingCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return fmt.Sprintf("%06d", g.rnd.IntN(900000)+100000)
}

var _ domain.CredentialGenerator = (*Generator)(nil)
