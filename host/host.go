// Package host adapts workloads to the AWS Lambda invocation boundary.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/weiihann/archbench/workload"
)

// Handler serves one workload as a lambda.Handler. Each invocation yields
// exactly one JSON envelope.
type Handler struct {
	workload workload.Workload
	env      workload.Environment
	logger   *slog.Logger
}

var _ lambda.Handler = (*Handler)(nil)

// NewHandler wraps w.
func NewHandler(w workload.Workload, env workload.Environment, logger *slog.Logger) *Handler {
	return &Handler{
		workload: w,
		env:      env,
		logger:   logger.With(slog.String("workloadType", w.Type())),
	}
}

// Invoke runs the workload for one request payload.
func (h *Handler) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	h.logger.InfoContext(ctx, "handler_start",
		slog.String("runtime", h.env.Runtime),
		slog.String("architecture", h.env.Architecture),
		slog.String("requestId", requestID(ctx)),
	)

	env := h.workload.Invoke(ctx, payload)

	switch e := env.(type) {
	case workload.Failure:
		h.logger.ErrorContext(ctx, "handler_error",
			slog.String("errorMessage", e.Error),
		)
	default:
		h.logger.InfoContext(ctx, "handler_success", successAttrs(env)...)
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return out, nil
}

func successAttrs(env workload.Envelope) []any {
	switch e := env.(type) {
	case workload.HashChainResult:
		return []any{
			slog.Uint64("iterations", uint64(e.Iterations)),
			slog.Int("resultHashLength", len(e.ResultHash)),
		}
	case workload.BulkArrayResult:
		return []any{
			slog.Uint64("sizeMb", uint64(e.SizeMB)),
			slog.Int("arrayElements", workload.ArrayElements),
		}
	case workload.RoundTripResult:
		return []any{
			slog.Int("itemsWritten", e.ItemsWritten),
			slog.Int("itemsRead", e.ItemsRead),
			slog.String("writeRequestId", e.WriteRequestID),
			slog.String("readRequestId", e.ReadRequestID),
			slog.Bool("allDataMatches", e.AllDataMatches),
		}
	default:
		return nil
	}
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}

	return "unknown"
}

// NewLogger returns a JSON logger suitable for CloudWatch.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Start blocks serving h through the Lambda runtime API.
func Start(h *Handler) {
	lambda.Start(h)
}
