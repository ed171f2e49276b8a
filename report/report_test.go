package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/weiihann/archbench/harness"
	"github.com/weiihann/archbench/workload"
)

func hashResult(arch, payload string, hashes ...string) harness.Result {
	r := harness.Result{
		Workload:     workload.HashChainType,
		Runtime:      "go1.24.0",
		Architecture: arch,
		Payload:      payload,
		Runs:         len(hashes),
	}

	for i, h := range hashes {
		r.Samples = append(r.Samples, harness.Sample{Run: i, Success: true, ResultHash: h})
	}

	return r
}

func TestGenerateMatchingDigests(t *testing.T) {
	arm := hashResult("aarch64", `{"iterations":1000}`, "0xabc", "0xabc")
	arm.Duration = harness.Stats{Mean: 1000, P50: 990, P90: 1100, P99: 1200}
	arm.MemoryLimitMB = 1769
	arm.PeakAllocBytes = 100 * 1024 * 1024

	x86 := hashResult("x86_64", `{"iterations":1000}`, "0xabc")
	x86.Duration = harness.Stats{Mean: 2000, P50: 1900, P90: 2100, P99: 2500}

	var buf bytes.Buffer
	if err := Generate(&buf, []harness.Result{arm, x86}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "all match") {
		t.Error("expected 'all match' for matching digests")
	}
	if !strings.Contains(output, "aarch64") || !strings.Contains(output, "x86_64") {
		t.Error("expected both architectures in output")
	}
	if !strings.Contains(output, "2.00x") {
		t.Error("expected 2.00x for x86_64 (twice as slow)")
	}
	if !strings.Contains(output, "1769 MB") {
		t.Error("expected memory limit in output")
	}
	if !strings.Contains(output, "100 MB") {
		t.Error("expected peak alloc in output")
	}
}

func TestGenerateMismatchedDigests(t *testing.T) {
	results := []harness.Result{
		hashResult("aarch64", "", "0xabc"),
		hashResult("x86_64", "", "0xdef"),
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "MISMATCH") {
		t.Error("expected MISMATCH for different digests")
	}
	if !strings.Contains(output, "0xabc") || !strings.Contains(output, "0xdef") {
		t.Error("expected both digests in mismatch details")
	}
}

func TestCheckDigestsGroupsByPayload(t *testing.T) {
	results := []harness.Result{
		hashResult("aarch64", `{"iterations":1}`, "one"),
		hashResult("x86_64", `{"iterations":2}`, "two"),
		hashResult("x86_64", `{"iterations":1}`, "one"),
		{Workload: workload.BulkArrayType, Samples: []harness.Sample{
			{Success: true, ResultHash: "random-1"},
			{Success: true, ResultHash: "random-2"},
		}},
	}

	groups := checkDigests(results)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	for _, g := range groups {
		if !g.match {
			t.Errorf("group %s reported mismatch", g.payload)
		}
	}

	if len(groups[0].results) != 2 {
		t.Errorf("first group has %d results, want 2", len(groups[0].results))
	}
}

func TestFindFastestPerWorkload(t *testing.T) {
	results := []harness.Result{
		{Workload: "cpu-intensive", Duration: harness.Stats{Mean: 30}},
		{Workload: "cpu-intensive", Duration: harness.Stats{Mean: 10}},
		{Workload: "light", Duration: harness.Stats{Mean: 50}},
		{Workload: "light"},
	}

	got := findFastest(results)
	if got["cpu-intensive"] != 10 || got["light"] != 50 {
		t.Errorf("findFastest = %v", got)
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(&buf, nil)
	if err == nil {
		t.Error("expected error for empty results")
	}
}

func TestGenerateJSON(t *testing.T) {
	results := []harness.Result{hashResult("aarch64", "", "0xabc")}

	var buf bytes.Buffer
	if err := GenerateJSON(&buf, results); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	var parsed []harness.Result
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if len(parsed) != 1 {
		t.Fatalf("expected 1 result, got %d", len(parsed))
	}
	if parsed[0].Architecture != "aarch64" {
		t.Errorf("architecture = %q, want aarch64", parsed[0].Architecture)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input uint64
		want  string
	}{
		{0, "-"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
	}

	for _, tt := range tests {
		got := formatBytes(tt.input)
		if got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "-"},
		{0.5, "0.50ms"},
		{999, "999.00ms"},
		{1000, "1.00s"},
		{1500, "1.50s"},
		{60000, "60.00s"},
	}

	for _, tt := range tests {
		got := formatMs(tt.input)
		if got != tt.want {
			t.Errorf("formatMs(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInvocationCost(t *testing.T) {
	tests := []struct {
		name   string
		billed float64
		mem    uint32
		arch   string
		region string
		want   float64
	}{
		{"x86 one GB-second", 1000, 1024, "x86_64", "us-east-2", 0.0000166667 + 0.2e-6},
		{"arm one GB-second", 1000, 1024, "aarch64", "us-east-2", 0.0000133334 + 0.2e-6},
		{"arm64 alias", 500, 2048, "arm64", "us-east-1", 0.0000133334 + 0.2e-6},
		{"unknown region", 1000, 1024, "x86_64", "eu-west-9", 0.0000166667 + 0.2e-6},
		{"request only", 0, 1024, "x86_64", "", 0.2e-6},
	}

	for _, tt := range tests {
		got := InvocationCost(tt.billed, tt.mem, tt.arch, tt.region)
		if math.Abs(got-tt.want) > 1e-15 {
			t.Errorf("%s: InvocationCost = %v, want %v", tt.name, got, tt.want)
		}
	}

	perMillion := CostPerMillion(1000, 1024, "x86_64", DefaultRegion)
	if math.Abs(perMillion-16.8667) > 1e-6 {
		t.Errorf("CostPerMillion = %v, want 16.8667", perMillion)
	}
}

func TestSavings(t *testing.T) {
	pct, abs := Savings(8, 10)
	if math.Abs(pct-20) > 1e-9 || math.Abs(abs-2) > 1e-9 {
		t.Errorf("Savings(8, 10) = %v, %v", pct, abs)
	}

	if pct, _ := Savings(12, 10); pct >= 0 {
		t.Errorf("Savings(12, 10) pct = %v, want negative", pct)
	}
	if pct, _ := Savings(1, 0); pct != 0 {
		t.Errorf("Savings(1, 0) pct = %v, want 0", pct)
	}
}

func remoteResult(arch string, billedMean float64) harness.Result {
	return harness.Result{
		Workload:       workload.RoundTripType,
		Runtime:        "provided.al2023",
		Architecture:   arch,
		MemoryLimitMB:  1024,
		Runs:           5,
		Function:       "go-" + arch + "-light",
		Region:         "us-east-2",
		Duration:       harness.Stats{Mean: billedMean - 0.5},
		BilledDuration: harness.Stats{Mean: billedMean},
	}
}

func TestGenerateCostSavings(t *testing.T) {
	results := []harness.Result{
		remoteResult("aarch64", 1000),
		remoteResult("x86_64", 1000),
		hashResult("aarch64", "", "0xabc"),
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "$13.5334") || !strings.Contains(output, "$16.8667") {
		t.Errorf("expected per-million costs in table:\n%s", output)
	}
	if !strings.Contains(output, "### Cost per 1M invocations") {
		t.Errorf("expected savings section:\n%s", output)
	}
	if !strings.Contains(output,
		"- light provided.al2023 1024 MB: aarch64 $13.5334, x86_64 $16.8667, aarch64 saves 19.76% ($3.3333)") {
		t.Errorf("unexpected savings line:\n%s", output)
	}
}

func TestGenerateNoSavingsWithoutPair(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, []harness.Result{remoteResult("aarch64", 10)}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if strings.Contains(buf.String(), "Cost per 1M") {
		t.Error("savings section printed without an x86_64 counterpart")
	}
}
