package main

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestBrowserCommand(t *testing.T) {
	const url = "http://localhost:3001/"
	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{"linux", "xdg-open", []string{url}, false},
		{"darwin", "open", []string{url}, false},
		{"windows", "cmd", []string{"/c", "start", url}, false},
		{"plan9", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if name != tt.wantName || !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("browserCommand() = %q %v, want %q %v", name, args, tt.wantName, tt.wantArgs)
			}
		})
	}
}

func TestWaitForAddr(t *testing.T) {
	var calls atomic.Int32
	addr := func() string {
		if calls.Add(1) < 3 {
			return ""
		}
		return "127.0.0.1:4000"
	}
	got, ok := waitForAddr(context.Background(), addr)
	if !ok || got != "127.0.0.1:4000" {
		t.Errorf("waitForAddr() = %q, %v", got, ok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, ok := waitForAddr(ctx, func() string { return "" }); ok {
		t.Error("expected timeout")
	}
}
