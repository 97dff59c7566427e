package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
version: 1
global:
  log_level: debug
chains:
  base:
    rpc_url: ${BASE_RPC_URL}
    contract: "0x1111111111111111111111111111111111111111"
    poll_interval: 2s
  polkadot:
    ws_url: wss://rpc.example/ws
    contract: "0x42"
arkiv:
  rpc_url: https://arkiv.example/rpc
  private_key: ${ARKIV_PRIVATE_KEY}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadInterpolatesEnvAndValidates(t *testing.T) {
	cfgPath := writeConfig(t, validYAML)
	t.Setenv("BASE_RPC_URL", "http://example-rpc")
	t.Setenv("ARKIV_PRIVATE_KEY", "0xdeadbeef")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}

	if got := cfg.Chains.Base.RPCURL; got != "http://example-rpc" {
		t.Fatalf("rpc_url not interpolated, got %q", got)
	}
	if got := cfg.Arkiv.PrivateKey; got != "0xdeadbeef" {
		t.Fatalf("private_key not interpolated, got %q", got)
	}
	d, err := cfg.Chains.Base.ParsePollInterval()
	if err != nil || d != 2*time.Second {
		t.Fatalf("poll_interval = %v err=%v", d, err)
	}
}

func TestLoadFailsOnMissingEnv(t *testing.T) {
	cfgPath := writeConfig(t, validYAML)
	t.Setenv("BASE_RPC_URL", "http://example-rpc")
	os.Unsetenv("ARKIV_PRIVATE_KEY")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected missing env to fail")
	}
}

func TestValidateRequiresArkivCredentials(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Chains:  ChainsConfig{Base: &BaseChain{RPCURL: "http://x", Contract: "0x1"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing arkiv credentials to fail")
	}
}

func TestValidateRequiresAChain(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Arkiv:   ArkivConfig{RPCURL: "http://x", PrivateKey: "0x1"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected chainless config to fail")
	}
}

func TestValidateSingleChainIsEnough(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Chains:  ChainsConfig{Polkadot: &PolkadotChain{WSURL: "wss://x", Contract: "0x42"}},
		Arkiv:   ArkivConfig{RPCURL: "http://x", PrivateKey: "0x1"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("single-chain config should validate: %v", err)
	}
}

func TestValidateRejectsBadPollInterval(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Chains:  ChainsConfig{Base: &BaseChain{RPCURL: "http://x", Contract: "0x1", PollInterval: "soon"}},
		Arkiv:   ArkivConfig{RPCURL: "http://x", PrivateKey: "0x1"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected bad poll_interval to fail")
	}
}

func TestDedupeTTLDefaults(t *testing.T) {
	d := DedupeConfig{}
	ttl, err := d.ParseTTL()
	if err != nil || ttl != 24*time.Hour {
		t.Fatalf("default ttl = %v err=%v", ttl, err)
	}

	d = DedupeConfig{TTL: "-5m"}
	if _, err := d.ParseTTL(); err == nil {
		t.Fatal("expected negative ttl to fail")
	}
}

func TestValidateDedupeNeedsPath(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Global:  GlobalConfig{Dedupe: DedupeConfig{Enabled: true}},
		Chains:  ChainsConfig{Polkadot: &PolkadotChain{WSURL: "wss://x", Contract: "0x42"}},
		Arkiv:   ArkivConfig{RPCURL: "http://x", PrivateKey: "0x1"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected enabled dedupe without db_path to fail")
	}
}
