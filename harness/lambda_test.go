package harness

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/weiihann/archbench/workload"
)

const testRequestID = "3f1c2a9e-0b7d-4e1a-9c55-6d2f8e7a1b00"

func logTail(report string) string {
	text := "START RequestId: " + testRequestID + " Version: $LATEST\n" +
		`{"level":"INFO","msg":"handler_start"}` + "\n" +
		"END RequestId: " + testRequestID + "\n" +
		report + "\n"

	return base64.StdEncoding.EncodeToString([]byte(text))
}

const coldReport = "REPORT RequestId: " + testRequestID +
	"\tDuration: 12.34 ms\tBilled Duration: 133 ms\tMemory Size: 1024 MB" +
	"\tMax Memory Used: 45 MB\tInit Duration: 120.50 ms\t"

const warmReport = "REPORT RequestId: " + testRequestID +
	"\tDuration: 8.50 ms\tBilled Duration: 9 ms\tMemory Size: 1024 MB" +
	"\tMax Memory Used: 47 MB\t"

// fakeLambda serves invocations by running w in-process.
type fakeLambda struct {
	w       workload.Workload
	reports []string
	calls   int

	funcErr   string
	invokeErr error
	config    *lambda.GetFunctionConfigurationOutput
	payloads  [][]byte
	lastInput *lambda.InvokeInput
}

func (f *fakeLambda) Invoke(
	ctx context.Context,
	params *lambda.InvokeInput,
	_ ...func(*lambda.Options),
) (*lambda.InvokeOutput, error) {
	f.lastInput = params
	f.payloads = append(f.payloads, params.Payload)

	if f.invokeErr != nil {
		return nil, f.invokeErr
	}

	out := &lambda.InvokeOutput{StatusCode: 200}

	if f.funcErr != "" {
		out.FunctionError = aws.String("Unhandled")
		out.Payload = []byte(`{"errorMessage":"` + f.funcErr + `","errorType":"Runtime.ExitError"}`)

		return out, nil
	}

	raw, err := json.Marshal(f.w.Invoke(ctx, params.Payload))
	if err != nil {
		return nil, err
	}

	out.Payload = raw

	if len(f.reports) > 0 {
		out.LogResult = aws.String(logTail(f.reports[min(f.calls, len(f.reports)-1)]))
	}

	f.calls++

	return out, nil
}

func (f *fakeLambda) GetFunctionConfiguration(
	_ context.Context,
	params *lambda.GetFunctionConfigurationInput,
	_ ...func(*lambda.Options),
) (*lambda.GetFunctionConfigurationOutput, error) {
	if f.config == nil {
		return nil, errors.New("function not found: " + aws.ToString(params.FunctionName))
	}

	return f.config, nil
}

func TestParseReport(t *testing.T) {
	r, ok := ParseReport(logTail(coldReport))
	if !ok {
		t.Fatal("ParseReport found no REPORT line")
	}

	want := Report{
		RequestID:        testRequestID,
		DurationMs:       12.34,
		BilledDurationMs: 133,
		MaxMemoryUsedMB:  45,
		InitDurationMs:   120.5,
	}
	if r != want {
		t.Errorf("report = %+v, want %+v", r, want)
	}

	warm, ok := ParseReport(logTail(warmReport))
	if !ok || warm.InitDurationMs != 0 || warm.BilledDurationMs != 9 {
		t.Errorf("warm report = %+v, %v", warm, ok)
	}
}

func TestParseReportMissing(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"not base64": "%%%",
		"no report":  base64.StdEncoding.EncodeToString([]byte("START RequestId: abc\nEND RequestId: abc\n")),
	}

	for name, in := range tests {
		if _, ok := ParseReport(in); ok {
			t.Errorf("%s: ParseReport reported a match", name)
		}
	}
}

func TestLambdaInvokerEnvironment(t *testing.T) {
	fake := &fakeLambda{config: &lambda.GetFunctionConfigurationOutput{
		Architectures: []types.Architecture{types.ArchitectureArm64},
		Runtime:       types.RuntimeProvidedal2023,
		MemorySize:    aws.Int32(1769),
	}}

	env, err := NewLambdaInvoker(fake, "go-arm64-light", workload.RoundTripType).
		Environment(context.Background())
	if err != nil {
		t.Fatalf("Environment: %v", err)
	}

	if env.Architecture != "aarch64" || env.Runtime != "provided.al2023" || env.MemoryLimitMB() != 1769 {
		t.Errorf("env = %s/%s/%d", env.Architecture, env.Runtime, env.MemoryLimitMB())
	}

	fake.config = &lambda.GetFunctionConfigurationOutput{
		PackageType: types.PackageTypeImage,
		MemorySize:  aws.Int32(512),
	}

	env, err = NewLambdaInvoker(fake, "image-light", workload.RoundTripType).
		Environment(context.Background())
	if err != nil {
		t.Fatalf("Environment: %v", err)
	}

	if env.Architecture != "x86_64" || env.Runtime != "Image" {
		t.Errorf("image env = %s/%s", env.Architecture, env.Runtime)
	}

	fake.config = nil
	if _, err := NewLambdaInvoker(fake, "missing", workload.RoundTripType).
		Environment(context.Background()); err == nil {
		t.Error("expected error for missing function")
	}
}

func TestLambdaInvokerRequest(t *testing.T) {
	fake := &fakeLambda{w: workload.NewHashChain(testEnv()), reports: []string{warmReport}}
	inv := NewLambdaInvoker(fake, "go-arm64-cpu-intensive", workload.HashChainType)

	got, err := inv.Invoke(context.Background(), []byte(`{"iterations":2}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	in := fake.lastInput
	if aws.ToString(in.FunctionName) != "go-arm64-cpu-intensive" {
		t.Errorf("function = %q", aws.ToString(in.FunctionName))
	}
	if in.InvocationType != types.InvocationTypeRequestResponse || in.LogType != types.LogTypeTail {
		t.Errorf("invocation = %s/%s", in.InvocationType, in.LogType)
	}

	if got.Report == nil || got.Report.BilledDurationMs != 9 {
		t.Errorf("report = %+v", got.Report)
	}

	env, err := ParseEnvelope(strings.NewReader(string(got.Response)))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.ResultHash != workload.HashChainVectors[2] {
		t.Errorf("resultHash = %s", env.ResultHash)
	}
}

func TestLambdaInvokerFunctionError(t *testing.T) {
	fake := &fakeLambda{funcErr: "signal: killed"}
	inv := NewLambdaInvoker(fake, "go-x86-memory-intensive", workload.BulkArrayType)

	got, err := inv.Invoke(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	env, err := ParseEnvelope(strings.NewReader(string(got.Response)))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}

	if env.Success || env.WorkloadType != workload.BulkArrayType {
		t.Errorf("envelope = %+v", env)
	}
	if env.Error != "Runtime.ExitError: signal: killed" {
		t.Errorf("error = %q", env.Error)
	}
	if got.Report != nil {
		t.Error("function error carried a report")
	}
}

func TestRunnerRemoteMetrics(t *testing.T) {
	env := testEnv()
	fake := &fakeLambda{
		w:       workload.NewHashChain(env),
		reports: []string{coldReport, warmReport},
	}

	r := NewRunner(NewLambdaInvoker(fake, "go-arm64-cpu-intensive", workload.HashChainType),
		env, discardLogger())

	result, err := r.Run(context.Background(), RunConfig{
		Runs:    3,
		Warmup:  0,
		Payload: []byte(`{"iterations":1000}`),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Failures != 0 {
		t.Fatalf("failures = %d: %+v", result.Failures, result.Samples)
	}
	if result.ColdStarts != 1 {
		t.Errorf("cold starts = %d, want 1", result.ColdStarts)
	}
	if result.MaxMemoryUsedMB != 47 {
		t.Errorf("max memory used = %d, want 47", result.MaxMemoryUsedMB)
	}

	first := result.Samples[0]
	if first.ElapsedMs != 12.34 || first.BilledMs != 133 || first.InitMs != 120.5 ||
		first.RequestID != testRequestID {
		t.Errorf("first sample = %+v", first)
	}
	if result.Samples[1].ElapsedMs != 8.5 {
		t.Errorf("second sample elapsed = %v, want 8.5", result.Samples[1].ElapsedMs)
	}

	if result.BilledDuration.SampleCount != 3 || result.BilledDuration.Max != 133 {
		t.Errorf("billed stats = %+v", result.BilledDuration)
	}
	if result.Samples[2].ResultHash != workload.HashChainVectors[1000] {
		t.Errorf("resultHash = %s", result.Samples[2].ResultHash)
	}
}

type blockingInvoker struct{}

func (blockingInvoker) Type() string { return workload.RoundTripType }

func (blockingInvoker) Invoke(ctx context.Context, _ []byte) (Invocation, error) {
	<-ctx.Done()

	return Invocation{}, ctx.Err()
}

func TestRunnerRecordsInvokeTimeout(t *testing.T) {
	r := NewRunner(blockingInvoker{}, testEnv(), discardLogger())

	result, err := r.Run(context.Background(), RunConfig{Runs: 2, Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Failures != 2 {
		t.Errorf("failures = %d, want 2", result.Failures)
	}
	if !strings.Contains(result.Samples[0].Error, "exceeded timeout") {
		t.Errorf("error = %q", result.Samples[0].Error)
	}
}

func TestRunnerRemoteInvokeError(t *testing.T) {
	fake := &fakeLambda{invokeErr: errors.New("AccessDeniedException")}
	r := NewRunner(NewLambdaInvoker(fake, "fn", workload.RoundTripType), testEnv(), discardLogger())

	if _, err := r.Run(context.Background(), RunConfig{Runs: 1}); err == nil ||
		!strings.Contains(err.Error(), "AccessDeniedException") {
		t.Errorf("err = %v, want AccessDeniedException", err)
	}
}
