package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestExpandEnv(t *testing.T) {
	t.Run("set variable wins over default", func(t *testing.T) {
		os.Setenv("TEST_EXPAND_VAR", "from-env")
		defer os.Unsetenv("TEST_EXPAND_VAR")

		if got := expandEnv("value: ${TEST_EXPAND_VAR:fallback}"); got != "value: from-env" {
			t.Errorf("expandEnv = %q", got)
		}
	})

	t.Run("unset variable falls back to default", func(t *testing.T) {
		os.Unsetenv("TEST_EXPAND_MISSING")
		if got := expandEnv("value: ${TEST_EXPAND_MISSING:fallback}"); got != "value: fallback" {
			t.Errorf("expandEnv = %q", got)
		}
	})

	t.Run("unset variable without default is kept verbatim", func(t *testing.T) {
		os.Unsetenv("TEST_EXPAND_BARE")
		if got := expandEnv("${TEST_EXPAND_BARE}"); got != "${TEST_EXPAND_BARE}" {
			t.Errorf("expandEnv = %q", got)
		}
	})
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	if got := v.GetInt("ingest.chunk_size"); got != 1000 {
		t.Errorf("ingest.chunk_size default = %d", got)
	}
	if got := v.GetInt("ingest.chunk_overlap"); got != 200 {
		t.Errorf("ingest.chunk_overlap default = %d", got)
	}
	if got := v.GetString("memory.retention"); got != "15m" {
		t.Errorf("memory.retention default = %q", got)
	}
	if got := v.GetInt("vector.top_k"); got != 3 {
		t.Errorf("vector.top_k default = %d", got)
	}
	if got := v.GetString("vector.backend"); got != "file" {
		t.Errorf("vector.backend default = %q", got)
	}
}
