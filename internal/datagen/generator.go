//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"fmt"
	"time"

	"github.com/pgEdge/pgedge-starschema/internal/logging"
	"github.com/pgEdge/pgedge-starschema/internal/model"
)

// BatchInsertConfig configures batch insert behavior.
type BatchInsertConfig struct {
	// BatchSize is the number of rows per batch insert.
	BatchSize int

	// ProgressInterval is how often to log progress (in rows).
	ProgressInterval int64
}

// DefaultBatchConfig returns default batch insert configuration.
func DefaultBatchConfig() BatchInsertConfig {
	return BatchInsertConfig{
		BatchSize:        1000,
		ProgressInterval: 100000,
	}
}

// ProgressReporter tracks and reports data generation progress.
type ProgressReporter struct {
	tableName        string
	totalRows        int64
	currentRow       int64
	progressInterval int64
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(tableName string, totalRows int64, interval int64) *ProgressReporter {
	if interval <= 0 {
		interval = DefaultBatchConfig().ProgressInterval
	}
	return &ProgressReporter{
		tableName:        tableName,
		totalRows:        totalRows,
		progressInterval: interval,
	}
}

// Update updates the progress and logs if necessary.
func (p *ProgressReporter) Update(rowsInserted int64) {
	oldRow := p.currentRow
	p.currentRow += rowsInserted

	if p.currentRow/p.progressInterval > oldRow/p.progressInterval {
		pct := float64(p.currentRow) / float64(p.totalRows) * 100
		logging.Info().
			Str("table", p.tableName).
			Int64("rows", p.currentRow).
			Int64("total", p.totalRows).
			Float64("percent", pct).
			Msg("Generating data")
	}
}

// Rows returns the number of rows reported so far.
func (p *ProgressReporter) Rows() int64 {
	return p.currentRow
}

// Done logs completion.
func (p *ProgressReporter) Done() {
	logging.Info().
		Str("table", p.tableName).
		Int64("rows", p.currentRow).
		Msg("Table complete")
}

// Reference data for the region pool: each nation is a region entry.
var nations = []struct {
	name   string
	region string
}{
	{"ALGERIA", "AFRICA"}, {"ARGENTINA", "AMERICA"}, {"BRAZIL", "AMERICA"},
	{"CANADA", "AMERICA"}, {"EGYPT", "MIDDLE EAST"}, {"ETHIOPIA", "AFRICA"},
	{"FRANCE", "EUROPE"}, {"GERMANY", "EUROPE"}, {"INDIA", "ASIA"},
	{"INDONESIA", "ASIA"}, {"IRAN", "MIDDLE EAST"}, {"IRAQ", "MIDDLE EAST"},
	{"JAPAN", "ASIA"}, {"JORDAN", "MIDDLE EAST"}, {"KENYA", "AFRICA"},
	{"MOROCCO", "AFRICA"}, {"MOZAMBIQUE", "AFRICA"}, {"PERU", "AMERICA"},
	{"CHINA", "ASIA"}, {"ROMANIA", "EUROPE"}, {"SAUDI ARABIA", "MIDDLE EAST"},
	{"VIETNAM", "ASIA"}, {"RUSSIA", "EUROPE"}, {"UNITED KINGDOM", "EUROPE"},
	{"UNITED STATES", "AMERICA"},
}

// SalesConfig controls the shape of a generated sales batch.
type SalesConfig struct {
	Rows      int
	Customers int
	Products  int

	// NullRatio is the probability that a record's quantity is NULL.
	NullRatio float64

	// DriftRatio is the probability that a record carries a variant of its
	// customer's name, producing a dimension key conflict.
	DriftRatio float64

	// Orders are dated between Start and End.
	Start time.Time
	End   time.Time
}

// DefaultSalesConfig returns the default sales batch shape.
func DefaultSalesConfig() SalesConfig {
	return SalesConfig{
		Rows:       10000,
		Customers:  500,
		Products:   200,
		NullRatio:  0.01,
		DriftRatio: 0.005,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type customer struct {
	first, last, email string
}

type product struct {
	name  string
	price float64
}

// SalesGenerator produces raw sales records from fixed pools of customers,
// products and regions.
type SalesGenerator struct {
	faker     *Faker
	cfg       SalesConfig
	customers []customer
	products  []product
}

// NewSalesGenerator creates a generator and draws its entity pools.
func NewSalesGenerator(f *Faker, cfg SalesConfig) *SalesGenerator {
	defaults := DefaultSalesConfig()
	if cfg.Customers <= 0 {
		cfg.Customers = defaults.Customers
	}
	if cfg.Products <= 0 {
		cfg.Products = defaults.Products
	}
	if cfg.Start.IsZero() || !cfg.End.After(cfg.Start) {
		cfg.Start, cfg.End = defaults.Start, defaults.End
	}

	g := &SalesGenerator{faker: f, cfg: cfg}
	g.customers = make([]customer, cfg.Customers)
	for i := range g.customers {
		g.customers[i] = customer{
			first: f.FirstName(),
			last:  f.LastName(),
			email: Truncate(f.Email(), 255),
		}
	}
	g.products = make([]product, cfg.Products)
	for i := range g.products {
		g.products[i] = product{
			name:  Truncate(f.ProductName(), 100),
			price: f.Price(1, 500),
		}
	}
	return g
}

// Record generates the record for order number n (1-based).
func (g *SalesGenerator) Record(n int) model.SalesRecord {
	f := g.faker
	ci := f.Int(0, len(g.customers)-1)
	pi := f.Int(0, len(g.products)-1)
	ri := f.Int(0, len(nations)-1)
	c := g.customers[ci]
	p := g.products[pi]

	name := c.first + " " + c.last
	if f.Chance(g.cfg.DriftRatio) {
		name = f.FirstName() + " " + c.last
	}

	orderTime := f.DateRange(g.cfg.Start, g.cfg.End)

	r := model.SalesRecord{
		OrderID:       int64(n),
		OrderDate:     model.DateOf(orderTime.UTC()),
		CustomerID:    int64(ci + 1),
		CustomerName:  Truncate(name, 100),
		CustomerEmail: c.email,
		ProductID:     int64(pi + 1),
		ProductName:   p.name,
		RegionID:      int64(ri + 1),
		RegionName:    nations[ri].region,
		Country:       nations[ri].name,
		UnitPrice:     p.price,
	}

	if f.Chance(g.cfg.NullRatio) {
		r.TotalAmount = p.price
	} else {
		qty := f.Int(1, 50)
		r.Quantity = &qty
		r.TotalAmount = RoundCents(float64(qty) * p.price)
	}
	return r
}

// Generate returns a full batch of cfg.Rows records.
func (g *SalesGenerator) Generate() []model.SalesRecord {
	out := make([]model.SalesRecord, 0, g.cfg.Rows)
	for i := 1; i <= g.cfg.Rows; i++ {
		out = append(out, g.Record(i))
	}
	return out
}

// Describe returns a one-line summary of the configuration.
func (c SalesConfig) Describe() string {
	return fmt.Sprintf("%d rows, %d customers, %d products, null=%.3f, drift=%.3f",
		c.Rows, c.Customers, c.Products, c.NullRatio, c.DriftRatio)
}
