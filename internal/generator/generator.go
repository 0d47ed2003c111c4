// Package generator produces synthetic order flow for driving the matching
// engine outside of a recorded data set: a Poisson arrival process over new
// orders and cancels, with log-normal order size and a mid price that
// evolves as a simple Gaussian random walk. It is grounded on the original
// PoissonOrderGenerator, reworked to emit model.Order values and explicit
// events instead of Python dicts, and to use an owned *rand.Rand instead of
// the global random module so a run is reproducible from its seed.
package generator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	"microstructurex/internal/model"
)

// EventKind distinguishes the two kinds of events the generator emits.
type EventKind int

const (
	NewOrderEvent EventKind = iota
	CancelEvent
)

func (k EventKind) String() string {
	switch k {
	case NewOrderEvent:
		return "NEW"
	case CancelEvent:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// Event is one item of synthetic order flow. Order is populated only for
// NewOrderEvent; CancelOrderID only for CancelEvent.
type Event struct {
	Kind          EventKind
	Order         *model.Order
	CancelOrderID string
	Timestamp     int64 // nanoseconds elapsed since generation start
}

// Config parameterizes the generator. The zero value is not usable; build
// one with DefaultConfig and override fields as needed.
type Config struct {
	Symbol          string
	BasePrice       decimal.Decimal
	Volatility      float64 // per-event mid shock stddev is Volatility*sqrt(1/ArrivalRate), as a fraction of price
	ArrivalRate     float64 // orders per second (Poisson lambda)
	MarketOrderProb float64 // P(event is a market order | not a cancel)
	CancelProb      float64 // P(event is a cancel), when there are active orders
	NumTraders      int     // owners are labelled trader1..traderN
	Seed            int64
}

// DefaultConfig mirrors the original generator's defaults.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:          symbol,
		BasePrice:       decimal.NewFromFloat(100.0),
		Volatility:      0.02,
		ArrivalRate:     10.0,
		MarketOrderProb: 0.3,
		CancelProb:      0.2,
		NumTraders:      10,
		Seed:            1,
	}
}

// Generator yields a bounded, reproducible stream of synthetic order-flow
// events. It is restartable: constructing a fresh Generator with the same
// Config (and therefore the same Seed) produces an identical event
// sequence, because all randomness is drawn from a *rand.Rand owned by the
// generator rather than a shared global source.
type Generator struct {
	cfg Config
	rng *rand.Rand

	durationSeconds float64
	elapsedSeconds  float64
	done            bool

	orderCounter uint64
	activeOrders []string
	currentMid   decimal.Decimal
	tickSize     decimal.Decimal
}

// New builds a Generator that yields events spanning at most durationSeconds
// of simulated time.
func New(cfg Config, durationSeconds float64) *Generator {
	return &Generator{
		cfg:             cfg,
		rng:             rand.New(rand.NewSource(cfg.Seed)),
		durationSeconds: durationSeconds,
		currentMid:      cfg.BasePrice,
		tickSize:        cfg.BasePrice.Mul(decimal.NewFromFloat(0.0001)),
	}
}

// Next produces the next event in the stream, or ok=false once the
// configured duration has elapsed. Next is not safe for concurrent use.
func (g *Generator) Next() (evt Event, ok bool) {
	if g.done {
		return Event{}, false
	}

	waitTime := expovariate(g.rng, g.cfg.ArrivalRate)
	g.elapsedSeconds += waitTime
	if g.elapsedSeconds >= g.durationSeconds {
		g.done = true
		return Event{}, false
	}
	ts := int64(g.elapsedSeconds * 1e9)

	if len(g.activeOrders) > 0 && g.rng.Float64() < g.cfg.CancelProb {
		idx := g.rng.Intn(len(g.activeOrders))
		id := g.activeOrders[idx]
		g.activeOrders = append(g.activeOrders[:idx], g.activeOrders[idx+1:]...)
		g.evolveMid()
		return Event{Kind: CancelEvent, CancelOrderID: id, Timestamp: ts}, true
	}

	order := g.newOrder(ts)
	if order.IsLimit() {
		g.activeOrders = append(g.activeOrders, order.ID)
	}
	g.evolveMid()
	return Event{Kind: NewOrderEvent, Order: order, Timestamp: ts}, true
}

// Collect drains the stream into a slice. Intended for bounded durations
// used in tests and batch replay; long-running simulations should prefer
// Next in a loop.
func (g *Generator) Collect() []Event {
	var events []Event
	for {
		evt, ok := g.Next()
		if !ok {
			return events
		}
		events = append(events, evt)
	}
}

func (g *Generator) newOrder(timestamp int64) *model.Order {
	g.orderCounter++
	id := fmt.Sprintf("O%d", g.orderCounter)

	isMarket := g.rng.Float64() < g.cfg.MarketOrderProb
	side := model.Buy
	if g.rng.Float64() >= 0.5 {
		side = model.Sell
	}

	quantity := decimal.NewFromFloat(math.Floor(lognormvariate(g.rng, 3, 1)))
	if quantity.LessThan(decimal.NewFromInt(1)) {
		quantity = decimal.NewFromInt(1)
	}

	numTraders := g.cfg.NumTraders
	if numTraders <= 0 {
		numTraders = 1
	}
	owner := fmt.Sprintf("trader%d", g.rng.Intn(numTraders)+1)

	var (
		typ      model.Type
		price    decimal.Decimal
		hasPrice bool
	)
	if isMarket {
		typ = model.Market
	} else {
		typ = model.Limit
		hasPrice = true
		spreadTicks := int(expovariate(g.rng, 1.0/5.0))
		offset := g.tickSize.Mul(decimal.NewFromInt(int64(spreadTicks)))
		if side == model.Buy {
			price = g.currentMid.Sub(offset)
		} else {
			price = g.currentMid.Add(offset)
		}
		if price.LessThan(g.tickSize) {
			price = g.tickSize
		}
	}

	order, err := model.NewOrder(id, timestamp, side, typ, price, hasPrice, quantity, owner, model.GTC)
	if err != nil {
		// The construction above always satisfies NewOrder's invariants
		// (positive quantity, price presence matching type); a failure here
		// would mean the generator itself is broken.
		panic(fmt.Sprintf("generator produced an invalid order: %v", err))
	}
	return &order
}

// evolveMid advances the mid price by one Gaussian shock, scaled by
// sqrt(1/arrival_rate) the same way the reference generator ties price
// volatility to the mean inter-arrival time rather than the realized one.
func (g *Generator) evolveMid() {
	dt := 1.0 / g.cfg.ArrivalRate
	shock := g.rng.NormFloat64() * g.cfg.Volatility * math.Sqrt(dt)
	factor := decimal.NewFromFloat(1 + shock)
	next := g.currentMid.Mul(factor)
	if next.LessThanOrEqual(decimal.Zero) {
		next = g.tickSize
	}
	g.currentMid = next
}

// CurrentMid reports the generator's internal mid-price estimate, useful
// for seeding an execution strategy's arrival-price baseline.
func (g *Generator) CurrentMid() decimal.Decimal {
	return g.currentMid
}

func expovariate(rng *rand.Rand, lambda float64) float64 {
	return -math.Log(1-rng.Float64()) / lambda
}

// lognormvariate matches Python's random.lognormvariate(mu, sigma): draw a
// normal(mu, sigma) and exponentiate.
func lognormvariate(rng *rand.Rand, mu, sigma float64) float64 {
	return math.Exp(mu + sigma*rng.NormFloat64())
}
