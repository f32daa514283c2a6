package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/go-nix-tts/internal/config"
	"github.com/spf13/cobra"
)

func TestNewHealthCmd_ProbesConfiguredAddr(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	activeCfg = config.DefaultConfig()

	cmd := newHealthCmd()
	cmd.SetArgs([]string{"--addr", strings.TrimPrefix(srv.URL, "http://")})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("health probe failed: %v", err)
	}
}

func TestNewHealthCmd_FailsOnUnhealthyServer(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	activeCfg = config.DefaultConfig()

	cmd := newHealthCmd()
	cmd.SetArgs([]string{"--addr", strings.TrimPrefix(srv.URL, "http://")})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unexpected health status") {
		t.Fatalf("expected unhealthy status error, got: %v", err)
	}
}

func TestServeCmd_InheritsConfigFlags(t *testing.T) {
	root := NewRootCmd()

	var serve *cobra.Command
	for _, sub := range root.Commands() {
		if sub.Name() == "serve" {
			serve = sub
		}
	}
	if serve == nil {
		t.Fatal("serve command not registered")
	}

	// Config flags come from the root's persistent set; serve must not
	// shadow them with a local copy.
	for _, name := range []string{"server-listen-addr", "server-workers", "tts-concurrency"} {
		if serve.InheritedFlags().Lookup(name) == nil {
			t.Errorf("expected serve to inherit flag %q", name)
		}
		if serve.LocalFlags().Lookup(name) != nil {
			t.Errorf("flag %q registered locally on serve; should only be inherited", name)
		}
	}
}
