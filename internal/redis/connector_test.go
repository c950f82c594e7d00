package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/MrSnakeDoc/pause/internal/logger"
)

func testOptions(addr string) ConnectOptions {
	return ConnectOptions{
		Addr:           addr,
		DialTimeout:    100 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   100 * time.Millisecond,
		PoolSize:       2,
		ConnectTimeout: 500 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    100 * time.Millisecond,
		WarnThreshold:  2,
	}
}

func TestConnectOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConnectOptions)
		wantErr string
	}{
		{"valid", func(*ConnectOptions) {}, ""},
		{"missing addr", func(o *ConnectOptions) { o.Addr = "" }, "addr is required"},
		{"zero connect timeout", func(o *ConnectOptions) { o.ConnectTimeout = 0 }, "connect timeout"},
		{"max wait below interval", func(o *ConnectOptions) { o.MaxWait = time.Millisecond }, "max wait"},
		{"negative warn threshold", func(o *ConnectOptions) { o.WarnThreshold = -1 }, "warn threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions("localhost:6379")
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConnect_Succeeds(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), testOptions(mr.Addr()), logger.NewNop())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close() //nolint:errcheck

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping after connect: %v", err)
	}
}

func TestConnect_GivesUpAfterTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	_, err := Connect(context.Background(), testOptions(addr), logger.NewNop())
	if err == nil {
		t.Fatal("expected an error for an unreachable server")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Connect took %v, expected to give up near the connect timeout", elapsed)
	}
}
