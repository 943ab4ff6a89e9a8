// Package convert transforms a raw policy ledger (CSV) into the
// catalog JSON and summary artifacts served by the API.
//
// This is offline tooling: it runs in cmd/heron-convert, never in the
// serving path. Ratings are drawn from an injected randomness source;
// production runs are non-deterministic on purpose, tests pass a fixed
// seed.
package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/smartcover/heron/internal/domain"
)

// Policy is one row of the raw policy ledger.
type Policy struct {
	PolicyID    string
	HolderID    string
	ProductCode string
	ProductName string
	Category    string
	Premium     float64 // annual premium in original currency (APE)
	Age         int
	Income      float64
	Gender      string
	Marital     string
	Currency    string
}

// Ledger column headers. The ledger is exported from a Taiwanese policy
// admin system, so most headers are Chinese.
const (
	colPolicyID    = "保單號碼"
	colHolderID    = "要保人ID"
	colProductCode = "商品英文簡稱"
	colProductName = "商品中文簡稱"
	colCategory    = "PRODUCT_TYPE"
	colPremium     = "目前原幣別APE"
	colAge         = "被保人現在年齡"
	colIncome      = "要保人年收入"
	colGender      = "被保人性別"
	colMarital     = "要保人婚姻狀況"
	colCurrency    = "幣別"
)

// ReadLedger parses the policy ledger CSV. Columns are located by
// header name; absent columns yield zero values rather than errors.
func ReadLedger(r io.Reader) ([]Policy, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var policies []Policy
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger row: %w", err)
		}

		premium, _ := strconv.ParseFloat(field(row, colPremium), 64)
		age, _ := strconv.Atoi(field(row, colAge))
		income, _ := strconv.ParseFloat(field(row, colIncome), 64)

		policies = append(policies, Policy{
			PolicyID:    field(row, colPolicyID),
			HolderID:    field(row, colHolderID),
			ProductCode: field(row, colProductCode),
			ProductName: field(row, colProductName),
			Category:    field(row, colCategory),
			Premium:     premium,
			Age:         age,
			Income:      income,
			Gender:      field(row, colGender),
			Marital:     field(row, colMarital),
			Currency:    field(row, colCurrency),
		})
	}

	return policies, nil
}

// premiumMultipliers scales the base (age-30) premium to the other
// brackets.
var premiumMultipliers = map[string]float64{
	"age_20": 0.7,
	"age_30": 1.0,
	"age_40": 1.3,
	"age_50": 1.8,
	"age_60": 2.5,
}

// defaultBasePremium is used when the ledger has no usable premium for
// a product.
const defaultBasePremium = 5000.0

// typeKeywords maps product-name keywords to product types. Groups are
// checked in order, first match wins; names matching nothing default to
// life.
var typeKeywords = []struct {
	keywords []string
	ptype    string
}{
	{[]string{"醫療", "健康", "照護"}, domain.TypeHealth},
	{[]string{"意外", "傷害"}, domain.TypeAccident},
	{[]string{"壽險", "終身"}, domain.TypeLife},
	{[]string{"投資", "變額"}, domain.TypeInvestment},
}

// ProductType infers the product type from its Chinese name.
func ProductType(name string) string {
	for _, group := range typeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(name, kw) {
				return group.ptype
			}
		}
	}
	return domain.TypeLife
}

// PremiumBrackets derives the per-bracket monthly premiums from a base
// average premium. Zero or NaN bases fall back to the default.
func PremiumBrackets(base float64) map[string]int {
	if base == 0 || math.IsNaN(base) {
		base = defaultBasePremium
	}

	brackets := make(map[string]int, len(premiumMultipliers))
	for bracket, mult := range premiumMultipliers {
		brackets[bracket] = int(base * mult)
	}
	return brackets
}

// Converter builds catalog products and analysis artifacts from ledger
// rows.
type Converter struct {
	rng *rand.Rand
}

// New creates a converter drawing ratings from rng.
func New(rng *rand.Rand) *Converter {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Converter{rng: rng}
}

// Products groups the ledger by product code and produces one catalog
// product per distinct code, in first-seen order.
func (c *Converter) Products(policies []Policy) []domain.Product {
	groups, order := groupByCode(policies)

	products := make([]domain.Product, 0, len(order))
	for _, code := range order {
		group := group{rows: groups[code]}
		name := group.rows[0].ProductName

		minAge, maxAge := group.ageRange()
		avgPremium := group.avgPremium()
		avgAge := group.avgAge()

		products = append(products, domain.Product{
			ID:          "PCA_" + code,
			Name:        name,
			Code:        code,
			Company:     "保誠人壽",
			Type:        ProductType(name),
			Category:    group.rows[0].Category,
			Description: describe(name),
			Premium: domain.Premium{
				Monthly:  PremiumBrackets(avgPremium),
				Currency: detectCurrency(group.rows),
			},
			AgeRange:    domain.AgeRange{Min: minAge, Max: maxAge},
			Rating:      c.drawRating(),
			SuitableFor: suitableGroups(group),
			Features:    features(name),
			Stats: &domain.ProductStats{
				TotalPolicies: len(group.rows),
				AvgAge:        round1(avgAge),
				AvgPremium:    round2(avgPremium),
			},
		})
	}

	return products
}

// drawRating returns a simulated rating in [4.0, 4.8], one decimal.
func (c *Converter) drawRating() float64 {
	return round1(4.0 + c.rng.Float64()*0.8)
}

type group struct {
	rows []Policy
}

func groupByCode(policies []Policy) (map[string][]Policy, []string) {
	groups := make(map[string][]Policy)
	var order []string
	for _, p := range policies {
		if p.ProductCode == "" {
			continue
		}
		if _, seen := groups[p.ProductCode]; !seen {
			order = append(order, p.ProductCode)
		}
		groups[p.ProductCode] = append(groups[p.ProductCode], p)
	}
	return groups, order
}

func (g group) ageRange() (int, int) {
	minAge, maxAge := g.rows[0].Age, g.rows[0].Age
	for _, p := range g.rows[1:] {
		if p.Age < minAge {
			minAge = p.Age
		}
		if p.Age > maxAge {
			maxAge = p.Age
		}
	}
	return minAge, maxAge
}

func (g group) avgPremium() float64 {
	var sum float64
	for _, p := range g.rows {
		sum += p.Premium
	}
	return sum / float64(len(g.rows))
}

func (g group) avgAge() float64 {
	var sum float64
	for _, p := range g.rows {
		sum += float64(p.Age)
	}
	return sum / float64(len(g.rows))
}

func (g group) avgIncome() float64 {
	var sum float64
	for _, p := range g.rows {
		sum += p.Income
	}
	return sum / float64(len(g.rows))
}

func (g group) marriedRatio() float64 {
	var married int
	for _, p := range g.rows {
		if p.Marital == "M" {
			married++
		}
	}
	return float64(married) / float64(len(g.rows))
}

func detectCurrency(rows []Policy) string {
	currency := rows[0].Currency
	if currency == "" || currency == "NT$" {
		return "TWD"
	}
	return currency
}

// suitableGroups derives advisory audience tags from the group's
// demographics. Tags are advisory only; scoring never reads them.
func suitableGroups(g group) []string {
	var tags []string

	avgAge := g.avgAge()
	if avgAge < 35 {
		tags = append(tags, "年輕族群")
	} else if avgAge > 50 {
		tags = append(tags, "中年族群")
	}

	avgIncome := g.avgIncome()
	if avgIncome > 100 {
		tags = append(tags, "高收入族群")
	} else if avgIncome < 50 {
		tags = append(tags, "預算有限")
	}

	if g.marriedRatio() > 0.6 {
		tags = append(tags, "家庭責任重")
	}

	if len(tags) == 0 {
		tags = []string{"一般大眾"}
	}
	return tags
}

const maxFeatures = 5

var featureKeywords = []struct {
	keyword string
	feature string
}{
	{"終身", "終身保障"},
	{"外幣", "外幣計價"},
	{"定期給付", "定期給付"},
	{"定額給付", "定額給付"},
	{"壽險", "身故保障"},
}

func features(name string) []string {
	var out []string
	for _, fk := range featureKeywords {
		if strings.Contains(name, fk.keyword) {
			out = append(out, fk.feature)
		}
	}

	out = append(out, "專業理賠服務", "彈性繳費方式")
	if len(out) > maxFeatures {
		out = out[:maxFeatures]
	}
	return out
}

func describe(name string) string {
	var b strings.Builder
	b.WriteString("保誠人壽")
	b.WriteString(name)
	b.WriteString("是一款專業設計的保險商品，")

	if strings.Contains(name, "終身") {
		b.WriteString("提供終身保障，")
	}
	if strings.Contains(name, "外幣") {
		b.WriteString("採用外幣計價，分散匯率風險，")
	}
	if strings.Contains(name, "壽險") {
		b.WriteString("提供完整的身故保障，")
	}

	b.WriteString("適合不同人生階段的保障需求。")
	return b.String()
}

// Persona is an aggregated customer segment for one age band.
type Persona struct {
	AgeGroup        string         `json:"age_group"`
	Count           int            `json:"count"`
	AvgPremium      float64        `json:"avg_premium"`
	PopularProducts map[string]int `json:"popular_products"`
	AvgIncome       float64        `json:"avg_income"`
	GenderRatio     map[string]int `json:"gender_ratio"`
}

var personaBands = []struct{ min, max int }{
	{18, 30},
	{31, 45},
	{46, 65},
}

// Personas aggregates the ledger into fixed age-band customer
// segments. Bands with no policies are omitted.
func (c *Converter) Personas(policies []Policy) []Persona {
	var personas []Persona

	for _, band := range personaBands {
		var rows []Policy
		for _, p := range policies {
			if p.Age >= band.min && p.Age <= band.max {
				rows = append(rows, p)
			}
		}
		if len(rows) == 0 {
			continue
		}

		g := group{rows: rows}
		genders := make(map[string]int)
		for _, p := range rows {
			genders[p.Gender]++
		}

		personas = append(personas, Persona{
			AgeGroup:        fmt.Sprintf("%d-%d歲", band.min, band.max),
			Count:           len(rows),
			AvgPremium:      round2(g.avgPremium()),
			PopularProducts: topProducts(rows, 3),
			AvgIncome:       round2(g.avgIncome()),
			GenderRatio:     genders,
		})
	}

	return personas
}

// Summary is the ledger-level report served by the data-summary
// endpoint.
type Summary struct {
	Overview struct {
		TotalPolicies int `json:"total_policies"`
		ProductKinds  int `json:"product_kinds"`
		Customers     int `json:"customers"`
	} `json:"overview"`
	AgeDistribution struct {
		Average float64 `json:"average"`
		Min     int     `json:"min"`
		Max     int     `json:"max"`
	} `json:"age_distribution"`
	PremiumAnalysis struct {
		Average float64 `json:"average"`
		Median  float64 `json:"median"`
	} `json:"premium_analysis"`
	TopProducts map[string]int `json:"top_products"`
}

// Summarize computes the ledger-level summary report.
func (c *Converter) Summarize(policies []Policy) *Summary {
	s := &Summary{TopProducts: map[string]int{}}
	if len(policies) == 0 {
		return s
	}

	names := make(map[string]struct{})
	holders := make(map[string]struct{})
	premiums := make([]float64, 0, len(policies))

	g := group{rows: policies}
	minAge, maxAge := g.ageRange()

	for _, p := range policies {
		names[p.ProductName] = struct{}{}
		holders[p.HolderID] = struct{}{}
		premiums = append(premiums, p.Premium)
	}

	s.Overview.TotalPolicies = len(policies)
	s.Overview.ProductKinds = len(names)
	s.Overview.Customers = len(holders)
	s.AgeDistribution.Average = round1(g.avgAge())
	s.AgeDistribution.Min = minAge
	s.AgeDistribution.Max = maxAge
	s.PremiumAnalysis.Average = round2(g.avgPremium())
	s.PremiumAnalysis.Median = round2(median(premiums))
	s.TopProducts = topProducts(policies, 5)

	return s
}

// topProducts returns the n most frequent product names with their
// policy counts. Ties are broken by name for determinism.
func topProducts(policies []Policy, n int) map[string]int {
	counts := make(map[string]int)
	for _, p := range policies {
		if p.ProductName != "" {
			counts[p.ProductName]++
		}
	}

	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	if len(entries) > n {
		entries = entries[:n]
	}

	top := make(map[string]int, len(entries))
	for _, e := range entries {
		top[e.name] = e.count
	}
	return top
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
