package connect

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// RequestIDHeader carries the client generated request ID.
const RequestIDHeader = "X-Request-Id"

// NewRequestIDInterceptor creates a client interceptor that tags every
// unary request with a fresh request ID.
func NewRequestIDInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && req.Header().Get(RequestIDHeader) == "" {
				req.Header().Set(RequestIDHeader, uuid.NewString())
			}
			return next(ctx, req)
		}
	}
}

// NewRequestLogInterceptor creates a server interceptor that logs every unary
// call with its request ID and echoes the ID in the response. Requests
// without an ID get one.
func NewRequestLogInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			start := time.Now()

			resp, err := next(ctx, req)
			if err != nil {
				zlog.Debug().Msgf("rpc: call: procedure=%s request_id=%s code=%s elapsed=%s",
					req.Spec().Procedure, id, connect.CodeOf(err), time.Since(start))
				var cerr *connect.Error
				if errors.As(err, &cerr) {
					cerr.Meta().Set(RequestIDHeader, id)
				}
				return nil, err
			}

			zlog.Debug().Msgf("rpc: call: procedure=%s request_id=%s code=ok elapsed=%s",
				req.Spec().Procedure, id, time.Since(start))
			resp.Header().Set(RequestIDHeader, id)
			return resp, nil
		}
	}
}
