package report

// DefaultRegion prices results that carry no region.
const DefaultRegion = "us-east-2"

// Price is the first-tier Lambda price of one architecture.
type Price struct {
	GBSecond float64
	Request  float64
}

// RegionPricing maps an architecture name, arm64 or x86, to its price.
type RegionPricing map[string]Price

// Pricing holds the on-demand Lambda prices in dollars per region.
var Pricing = map[string]RegionPricing{
	"us-east-2": {
		"x86":   {GBSecond: 0.0000166667, Request: 0.20 / 1_000_000},
		"arm64": {GBSecond: 0.0000133334, Request: 0.20 / 1_000_000},
	},
	"us-east-1": {
		"x86":   {GBSecond: 0.0000166667, Request: 0.20 / 1_000_000},
		"arm64": {GBSecond: 0.0000133334, Request: 0.20 / 1_000_000},
	},
}

func priceFor(architecture, region string) Price {
	regional, ok := Pricing[region]
	if !ok {
		regional = Pricing[DefaultRegion]
	}

	switch architecture {
	case "arm64", "aarch64":
		return regional["arm64"]
	default:
		return regional["x86"]
	}
}

// InvocationCost returns the dollar cost of one invocation billed for
// billedMs at memoryMB. Unknown regions are priced as DefaultRegion.
func InvocationCost(billedMs float64, memoryMB uint32, architecture, region string) float64 {
	p := priceFor(architecture, region)
	gbSeconds := (float64(memoryMB) / 1024) * (billedMs / 1000)

	return gbSeconds*p.GBSecond + p.Request
}

// CostPerMillion returns the dollar cost of one million invocations with
// an average billed duration of avgBilledMs.
func CostPerMillion(avgBilledMs float64, memoryMB uint32, architecture, region string) float64 {
	return InvocationCost(avgBilledMs, memoryMB, architecture, region) * 1_000_000
}

// Savings compares an arm64 cost to an x86 cost. pct is the share of the
// x86 cost saved by arm64, negative when arm64 is more expensive.
func Savings(arm, x86 float64) (pct, abs float64) {
	if x86 > 0 {
		pct = (x86 - arm) / x86 * 100
	}

	return pct, x86 - arm
}
