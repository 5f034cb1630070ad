package handler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs every unary call with its status code and latency.
func LoggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		entry := logger.WithFields(logrus.Fields{
			"Method":   info.FullMethod,
			"Code":     code.String(),
			"Duration": time.Since(start).String(),
		})
		switch code {
		case codes.OK:
			entry.Info("gRPC call")
		case codes.Internal, codes.Unavailable, codes.Unknown:
			entry.WithError(err).Error("gRPC call failed")
		default:
			entry.WithError(err).Warn("gRPC call rejected")
		}
		return resp, err
	}
}
