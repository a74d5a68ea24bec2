package bus

import (
	"testing"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

func TestNewRedisBusRequiresAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URL", "")
	if _, err := NewRedisBus(logger.Nop()); err == nil {
		t.Fatalf("expected error without REDIS_ADDR")
	}
	if _, err := NewRedisBus(nil); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestNewRedisBusWithClientDefaultsChannel(t *testing.T) {
	b := NewRedisBusWithClient(logger.Nop(), nil, "  ").(*redisBus)
	if b.channel != "amicus:sse" {
		t.Fatalf("channel=%q", b.channel)
	}
	if Client(b) != nil {
		t.Fatalf("expected nil client")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}

func TestRedisOptionsPrefersURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://:pw@cache:6380/2")
	t.Setenv("REDIS_ADDR", "ignored:6379")
	opts, err := redisOptions(logger.Nop())
	if err != nil {
		t.Fatalf("redisOptions: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("opts=%+v", opts)
	}

	t.Setenv("REDIS_URL", "not a url")
	if _, err := redisOptions(logger.Nop()); err == nil {
		t.Fatalf("expected parse error")
	}
}
