package observability

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/signalsfoundry/impact-predictor/internal/logging"
)

const episodeIDMetadataKey = "x-episode-id"

// LoggingUnaryServerInterceptor attaches a per-request logger annotated with
// the method and, when the caller sends one, the episode_id it asks about.
func LoggingUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if id := firstHeader(md, episodeIDMetadataKey); id != "" {
				ctx = logging.ContextWithEpisodeID(ctx, id)
			}
		}

		method := "unknown"
		if info != nil {
			method = info.FullMethod
		}
		reqLog := logging.WithEpisodeLogger(ctx, base.With(logging.String("method", method)))
		ctx = logging.ContextWithLogger(ctx, reqLog)

		resp, err := handler(ctx, req)
		if err != nil {
			reqLog.Debug(ctx, "rpc failed", logging.Err(err))
		}
		return resp, err
	}
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
