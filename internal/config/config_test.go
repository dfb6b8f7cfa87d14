package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("QUIET_TEST_EMPTY", "")

	if got := String("QUIET_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
	if got := Int("QUIET_TEST_EMPTY", 7); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
	if got := Duration("QUIET_TEST_EMPTY", time.Second); got != time.Second {
		t.Errorf("got %v, want 1s", got)
	}
	if got := Bool("QUIET_TEST_EMPTY", true); !got {
		t.Errorf("got %v, want true", got)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("QUIET_TEST_STR", "127.0.0.1:9999")
	t.Setenv("QUIET_TEST_INT", "46")
	t.Setenv("QUIET_TEST_DUR", "250ms")
	t.Setenv("QUIET_TEST_BOOL", "true")

	if got := String("QUIET_TEST_STR", ""); got != "127.0.0.1:9999" {
		t.Errorf("got %q", got)
	}
	if got := Int("QUIET_TEST_INT", 0); got != 46 {
		t.Errorf("got %d, want 46", got)
	}
	if got := Duration("QUIET_TEST_DUR", 0); got != 250*time.Millisecond {
		t.Errorf("got %v, want 250ms", got)
	}
	if got := Bool("QUIET_TEST_BOOL", false); !got {
		t.Errorf("got %v, want true", got)
	}
}

func TestInvalidFallsBack(t *testing.T) {
	t.Setenv("QUIET_TEST_INT", "many")
	t.Setenv("QUIET_TEST_DUR", "soon")

	if got := Int("QUIET_TEST_INT", 3); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := Duration("QUIET_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("got %v, want 1m", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("QUIET_TEST_DOTENV=from-file\nQUIET_TEST_SET=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QUIET_TEST_SET", "from-env")
	// registers cleanup for the variable Load is about to set
	t.Setenv("QUIET_TEST_DOTENV", "")
	os.Unsetenv("QUIET_TEST_DOTENV")

	Load(path)

	if got := String("QUIET_TEST_DOTENV", ""); got != "from-file" {
		t.Errorf("got %q, want from-file", got)
	}
	if got := String("QUIET_TEST_SET", ""); got != "from-env" {
		t.Errorf("got %q, want from-env", got)
	}
}
