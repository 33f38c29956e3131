package logger_test

import (
	"testing"

	"github.com/AtharvaWandhare/synapse/internal/logger"
)

func TestNew(t *testing.T) {
	for _, c := range []struct{ json, debug bool }{{false, false}, {true, false}, {true, true}} {
		l, err := logger.New(c.json, c.debug)
		if err != nil {
			t.Fatalf("New(%v, %v) error: %v", c.json, c.debug, err)
		}
		if got := l.Core().Enabled(-1); got != c.debug {
			t.Errorf("New(%v, %v) debug enabled = %v", c.json, c.debug, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"héllo", 2, "hé..."},
		{"anything", 0, ""},
	}
	for _, c := range cases {
		if got := logger.Truncate(c.in, c.limit); got != c.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", c.in, c.limit, got, c.want)
		}
	}
}
