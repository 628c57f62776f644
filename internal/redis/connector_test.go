package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/MrSnakeDoc/stacklink/internal/logger"
)

func testOptions(addr string) ConnectOptions {
	return ConnectOptions{
		Addr:           addr,
		DialTimeout:    100 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   100 * time.Millisecond,
		PoolSize:       2,
		ConnectTimeout: 300 * time.Millisecond,
		RetryInterval:  20 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    100 * time.Millisecond,
		WarnThreshold:  1,
	}
}

func TestConnectOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *ConnectOptions)
		wantErr error
		invalid bool
	}{
		{"valid", func(*ConnectOptions) {}, nil, false},
		{"no address", func(o *ConnectOptions) { o.Addr = "" }, ErrNotConfigured, true},
		{"no connect timeout", func(o *ConnectOptions) { o.ConnectTimeout = 0 }, nil, true},
		{"no retry interval", func(o *ConnectOptions) { o.RetryInterval = 0 }, nil, true},
		{"no max wait", func(o *ConnectOptions) { o.MaxWait = 0 }, nil, true},
		{"no ping timeout", func(o *ConnectOptions) { o.PingTimeout = 0 }, nil, true},
		{"negative warn threshold", func(o *ConnectOptions) { o.WarnThreshold = -1 }, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions("localhost:6379")
			tt.mutate(&opts)

			err := opts.validate()
			if tt.invalid != (err != nil) {
				t.Fatalf("validate() error = %v, invalid = %v", err, tt.invalid)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), testOptions(mr.Addr()), logger.Nop())
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Errorf("Set() unexpected error: %v", err)
	}
}

func TestNew_NotConfigured(t *testing.T) {
	if _, err := New(context.Background(), testOptions(""), logger.Nop()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("New() error = %v, want ErrNotConfigured", err)
	}
}

func TestNew_GivesUp(t *testing.T) {
	// Reserve a port and release it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() unexpected error: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	start := time.Now()
	if _, err := New(context.Background(), testOptions(addr), logger.Nop()); err == nil {
		t.Fatal("New() expected error for unreachable redis")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("New() took %v, should give up after ConnectTimeout", elapsed)
	}
}
