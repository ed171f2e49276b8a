package harness

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/weiihann/archbench/workload"
)

// LambdaAPI is the subset of the Lambda client used by LambdaInvoker.
type LambdaAPI interface {
	Invoke(
		ctx context.Context,
		params *lambda.InvokeInput,
		optFns ...func(*lambda.Options),
	) (*lambda.InvokeOutput, error)
	GetFunctionConfiguration(
		ctx context.Context,
		params *lambda.GetFunctionConfigurationInput,
		optFns ...func(*lambda.Options),
	) (*lambda.GetFunctionConfigurationOutput, error)
}

// LambdaInvoker invokes a deployed function synchronously and collects the
// REPORT line from the tail of its log.
type LambdaInvoker struct {
	client       LambdaAPI
	function     string
	workloadType string
}

// NewLambdaInvoker creates an invoker for the named function, which must
// serve workloadType.
func NewLambdaInvoker(client LambdaAPI, function, workloadType string) *LambdaInvoker {
	return &LambdaInvoker{
		client:       client,
		function:     function,
		workloadType: workloadType,
	}
}

// Type returns the workload type served by the function.
func (l *LambdaInvoker) Type() string { return l.workloadType }

// Function returns the function name.
func (l *LambdaInvoker) Function() string { return l.function }

// Environment describes the deployed function: its architecture, runtime
// and configured memory size.
func (l *LambdaInvoker) Environment(ctx context.Context) (workload.Environment, error) {
	out, err := l.client.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(l.function),
	})
	if err != nil {
		return workload.Environment{}, fmt.Errorf("get configuration of %s: %w", l.function, err)
	}

	arch := string(types.ArchitectureX8664)
	if len(out.Architectures) > 0 {
		arch = workload.ResolveArchitecture(string(out.Architectures[0]))
	}

	rt := string(out.Runtime)
	if rt == "" {
		rt = string(out.PackageType)
	}

	memory := strconv.Itoa(int(aws.ToInt32(out.MemorySize)))

	env := workload.Environment{Architecture: arch, Runtime: rt}

	return env.WithLookup(func(key string) (string, bool) {
		if key == workload.MemorySizeEnv {
			return memory, true
		}

		return "", false
	}), nil
}

// Invoke sends one RequestResponse invocation with the log tail requested.
// Function errors are turned into failure envelopes.
func (l *LambdaInvoker) Invoke(ctx context.Context, payload []byte) (Invocation, error) {
	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(l.function),
		InvocationType: types.InvocationTypeRequestResponse,
		LogType:        types.LogTypeTail,
		Payload:        payload,
	})
	if err != nil {
		return Invocation{}, fmt.Errorf("invoke %s: %w", l.function, err)
	}

	if out.FunctionError != nil {
		raw, err := json.Marshal(workload.Failure{
			WorkloadType: l.workloadType,
			Error:        functionErrorMessage(aws.ToString(out.FunctionError), out.Payload),
		})
		if err != nil {
			return Invocation{}, fmt.Errorf("marshal function error: %w", err)
		}

		return Invocation{Response: raw}, nil
	}

	inv := Invocation{Response: out.Payload}
	if report, ok := ParseReport(aws.ToString(out.LogResult)); ok {
		inv.Report = &report
	}

	return inv, nil
}

func functionErrorMessage(kind string, payload []byte) string {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
		ErrorType    string `json:"errorType"`
	}

	if err := json.Unmarshal(payload, &body); err != nil || body.ErrorMessage == "" {
		return "function error: " + kind
	}

	if body.ErrorType != "" {
		return body.ErrorType + ": " + body.ErrorMessage
	}

	return body.ErrorMessage
}

// Report holds the metrics of a Lambda REPORT log line.
type Report struct {
	RequestID        string
	DurationMs       float64
	BilledDurationMs float64
	MaxMemoryUsedMB  uint32
	// InitDurationMs is only reported for cold starts.
	InitDurationMs float64
}

var (
	reportLineRe = regexp.MustCompile(`REPORT RequestId:\s+([a-f0-9-]+).*`)
	durationRe   = regexp.MustCompile(`Duration:\s+([\d.]+)\s+ms`)
	billedRe     = regexp.MustCompile(`Billed Duration:\s+(\d+)\s+ms`)
	memoryUsedRe = regexp.MustCompile(`Max Memory Used:\s+(\d+)\s+MB`)
	initRe       = regexp.MustCompile(`Init Duration:\s+([\d.]+)\s+ms`)
)

// ParseReport decodes a base64 log tail and extracts its REPORT line. It
// reports false when the tail is empty, undecodable or has no REPORT line.
func ParseReport(logResult string) (Report, bool) {
	if logResult == "" {
		return Report{}, false
	}

	text, err := base64.StdEncoding.DecodeString(logResult)
	if err != nil {
		return Report{}, false
	}

	m := reportLineRe.FindSubmatch(text)
	if m == nil {
		return Report{}, false
	}

	line := m[0]
	r := Report{RequestID: string(m[1])}

	if v := durationRe.FindSubmatch(line); v != nil {
		r.DurationMs, _ = strconv.ParseFloat(string(v[1]), 64)
	}
	if v := billedRe.FindSubmatch(line); v != nil {
		r.BilledDurationMs, _ = strconv.ParseFloat(string(v[1]), 64)
	}
	if v := memoryUsedRe.FindSubmatch(line); v != nil {
		mb, _ := strconv.ParseUint(string(v[1]), 10, 32)
		r.MaxMemoryUsedMB = uint32(mb)
	}
	if v := initRe.FindSubmatch(line); v != nil {
		r.InitDurationMs, _ = strconv.ParseFloat(string(v[1]), 64)
	}

	return r, true
}
