package telemetry

import (
	"context"
	"net"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MonitorRedis attaches a debug-level command log to r.
func MonitorRedis(r redis.UniversalClient, log *zap.Logger) {
	r.AddHook(redisLog{log: log.Named("redis")})
}

type redisLog struct {
	log *zap.Logger
}

func (h redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			h.log.Warn("dial failed", zap.String("addr", addr), zap.Error(err))
		} else {
			h.log.Debug("dialed", zap.String("network", network), zap.String("addr", addr))
		}
		return conn, err
	}
}

func (h redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := hook(ctx, cmd)
		if ce := h.log.Check(zap.DebugLevel, "command"); ce != nil {
			ce.Write(zap.String("cmd", cmd.Name()), zap.Error(err))
		}
		return err
	}
}

func (h redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := hook(ctx, cmds)
		if ce := h.log.Check(zap.DebugLevel, "pipeline"); ce != nil {
			ce.Write(zap.Int("cmds", len(cmds)), zap.Error(err))
		}
		return err
	}
}
