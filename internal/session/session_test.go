package session

import "testing"

func TestNewIsNotConfigured(t *testing.T) {
	s := New()
	if s.Snapshot().IsConfigured() {
		t.Fatal("new session should not be configured")
	}
}

func TestConfigureMonotonicity(t *testing.T) {
	s := New()
	s.Configure(ConfigureParams{LLMAPIKey: "sk-x"})
	if !s.Snapshot().IsConfigured() {
		t.Fatal("expected configured after first configure with an llm_api_key")
	}
	s.Configure(ConfigureParams{Voice: "nova"})
	if !s.Snapshot().IsConfigured() {
		t.Fatal("is_configured must remain true across later configure calls")
	}
}

func TestTTSAPIKeyDefaultsToLLMKey(t *testing.T) {
	s := New()
	s.Configure(ConfigureParams{LLMAPIKey: "sk-x"})
	snap := s.Snapshot()
	if snap.TTSAPIKey != "sk-x" {
		t.Fatalf("tts_api_key = %q, want fallback to llm_api_key", snap.TTSAPIKey)
	}
}

func TestProviderAutoDetection(t *testing.T) {
	cases := map[string]Provider{
		"sk-abc123":      ProviderOpenAI,
		"elevenlabs_abc": ProviderElevenLabs,
		"el-abc":         ProviderElevenLabs,
		"":               ProviderOpenAI,
	}
	for key, want := range cases {
		if got := DetectProvider(key); got != want {
			t.Errorf("DetectProvider(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestExplicitProviderIsRespected(t *testing.T) {
	s := New()
	s.Configure(ConfigureParams{LLMAPIKey: "sk-x", TTSProvider: ProviderElevenLabs})
	if got := s.Snapshot().TTSProvider; got != ProviderElevenLabs {
		t.Fatalf("explicit tts_provider %q was overridden by auto-detection", got)
	}
}

func TestBaseURLAndHeadersOnlyApplyToLLM(t *testing.T) {
	s := New()
	s.Configure(ConfigureParams{
		LLMAPIKey:      "sk-x",
		BaseURL:        "https://my-proxy.example.com/v1",
		DefaultHeaders: map[string]string{"X-Org": "acme"},
	})
	snap := s.Snapshot()
	if snap.BaseURL != "https://my-proxy.example.com/v1" {
		t.Fatalf("base_url not stored: %+v", snap)
	}
	if snap.DefaultHeaders["X-Org"] != "acme" {
		t.Fatalf("default_headers not stored: %+v", snap)
	}
}
