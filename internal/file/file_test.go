package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveWithin(t *testing.T) {
	base := t.TempDir()

	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain file", in: "a.log", want: filepath.Join(base, "a.log")},
		{name: "nested file", in: "sub/a.log", want: filepath.Join(base, "sub", "a.log")},
		{name: "dot segments stay inside", in: "sub/../a.log", want: filepath.Join(base, "a.log")},
		{name: "base itself", in: ".", want: base},
		{name: "parent escape", in: "../../etc/passwd", wantErr: true},
		{name: "absolute outside", in: "/etc/passwd", wantErr: true},
		{name: "absolute inside", in: filepath.Join(base, "x.log"), want: filepath.Join(base, "x.log")},
		{name: "prefix collision", in: "../" + filepath.Base(base) + "-evil/x", wantErr: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ResolveWithin(base, c.in)
			if c.wantErr {
				if !errors.Is(err, ErrOutsideBase) {
					t.Fatalf("ResolveWithin(%q) err=%v, want ErrOutsideBase", c.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveWithin(%q) unexpected error: %v", c.in, err)
			}
			if got != c.want {
				t.Fatalf("ResolveWithin(%q)=%q want %q", c.in, got, c.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s, err=%v", dir, err)
	}
	if err := EnsureDir(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
