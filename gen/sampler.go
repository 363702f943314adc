package gen

import (
	"cmp"
	"encoding/binary"
	"hash/fnv"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler is a seeded pseudo-random stream. It is owned by one generator and
// is not safe for concurrent use. The same seed and the same call sequence
// always produce the same values.
type Sampler struct {
	seed  int64
	faker *gofakeit.Faker
	src   exprand.Source
}

func NewSampler(seed int64) *Sampler {
	// gofakeit picks a random seed for zero.
	if seed == 0 {
		seed = 1
	}
	return &Sampler{
		seed:  seed,
		faker: gofakeit.New(seed),
		src:   exprand.NewSource(uint64(seed)),
	}
}

// Fork derives an independent stream from the sampler's seed and a name.
// The result depends only on the two, never on how much of s was consumed.
func (s *Sampler) Fork(name string) *Sampler {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(s.seed))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(name))
	return NewSampler(int64(h.Sum64() & math.MaxInt64))
}

func (s *Sampler) Seed() int64 {
	return s.seed
}

// Faker exposes the fake-value generator bound to this stream.
func (s *Sampler) Faker() *gofakeit.Faker {
	return s.faker
}

func (s *Sampler) Float64() float64 {
	return s.faker.Rand.Float64()
}

// IntRange returns a value in [lo, hi].
func (s *Sampler) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.faker.Rand.Intn(hi-lo+1)
}

func (s *Sampler) Float64Range(lo, hi float64) float64 {
	return lo + s.Float64()*(hi-lo)
}

// Chance reports true with probability p.
func (s *Sampler) Chance(p float64) bool {
	return s.Float64() < p
}

// Duration returns a value in [lo, hi] at second granularity.
func (s *Sampler) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int64((hi - lo) / time.Second)
	return lo + time.Duration(s.faker.Rand.Int63n(span+1))*time.Second
}

// Beta draws from Beta(alpha, beta) on [0, 1].
func (s *Sampler) Beta(alpha, beta float64) float64 {
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: s.src}.Rand()
}

// BetaRange maps a Beta(alpha, beta) draw onto [lo, hi].
func (s *Sampler) BetaRange(alpha, beta, lo, hi float64) float64 {
	return lo + s.Beta(alpha, beta)*(hi-lo)
}

// Exponential draws from an exponential distribution with the given mean.
func (s *Sampler) Exponential(mean float64) float64 {
	return distuv.Exponential{Rate: 1 / mean, Src: s.src}.Rand()
}

// UUID returns a v4 UUID drawn from this stream.
func (s *Sampler) UUID() string {
	id, err := uuid.NewRandomFromReader(s.faker.Rand)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Pick returns a uniformly chosen element of items.
func Pick[T any](s *Sampler, items []T) T {
	return items[s.faker.Rand.Intn(len(items))]
}

// SampleN returns k distinct elements of items in random order.
func SampleN[T any](s *Sampler, items []T, k int) []T {
	if k > len(items) {
		k = len(items)
	}
	pool := slices.Clone(items)
	for i := 0; i < k; i++ {
		j := i + s.faker.Rand.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Weights is a categorical distribution. Labels are kept sorted so that the
// draw sequence does not depend on map iteration order.
type Weights[T cmp.Ordered] struct {
	labels []T
	cum    []float64
	total  float64
}

// NewWeights panics on an empty table, a negative weight or a zero total.
func NewWeights[T cmp.Ordered](table map[T]float64) Weights[T] {
	if len(table) == 0 {
		panic("gen: empty weight table")
	}
	labels := make([]T, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	w := Weights[T]{labels: labels, cum: make([]float64, len(labels))}
	for i, label := range labels {
		weight := table[label]
		if weight < 0 || math.IsNaN(weight) {
			panic("gen: negative weight")
		}
		w.total += weight
		w.cum[i] = w.total
	}
	if w.total <= 0 {
		panic("gen: weight table sums to zero")
	}
	return w
}

func (w Weights[T]) Labels() []T {
	return slices.Clone(w.labels)
}

// Weighted draws one label with probability proportional to its weight.
func Weighted[T cmp.Ordered](s *Sampler, w Weights[T]) T {
	if len(w.labels) == 0 {
		panic("gen: empty weight table")
	}
	x := s.Float64() * w.total
	i := sort.Search(len(w.cum), func(i int) bool { return w.cum[i] > x })
	if i == len(w.cum) {
		i = len(w.cum) - 1
	}
	return w.labels[i]
}
