package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testHTML = `<html data-markout="0"><body><p data-markout="1"><!---t0-->x<!---/--></p></body></html>`

const testSpec = `id: "0"
values:
  name: Ada
children:
  - id: "1"
    values:
      text$0: {fn: concat, args: [{val: "Hello, "}, name]}
`

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version", "--short")
	if code != 0 || out != "dev\n" {
		t.Errorf("got %d %q", code, out)
	}

	_, out, _ = runCLI(t, "version")
	if !strings.HasPrefix(out, "markout dev\n") || !strings.Contains(out, "Go version:") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"pages/index.html":      testHTML,
		"pages/index.yaml":      testSpec,
		"pages/blog/about.html": "<p>about</p>",
	})

	tests := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{"index", []string{"render", "index", "-C", dir}, 0, `<!---t0-->Hello, Ada<!---/-->`, ""},
		{"static", []string{"render", "blog/about", "-C", dir}, 0, "<p>about</p>", ""},
		{"docroot flag", []string{"render", "index", "--docroot", filepath.Join(dir, "pages")}, 0, "Hello, Ada", ""},
		{"missing page", []string{"render", "nope", "-C", dir}, 1, "", "E301"},
		{"bad name", []string{"render", "../index", "-C", dir}, 1, "", "E302"},
		{"missing docroot", []string{"render", "index", "--docroot", filepath.Join(dir, "nope")}, 1, "", "E104"},
		{"no page", []string{"render", "-C", dir}, 1, "", "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.args...)
			if code != tt.code {
				t.Fatalf("exit code %d, want %d (stderr %q)", code, tt.code, stderr)
			}
			if !strings.Contains(stdout, tt.stdout) {
				t.Errorf("stdout %q does not contain %q", stdout, tt.stdout)
			}
			if !strings.Contains(stderr, tt.stderr) {
				t.Errorf("stderr %q does not contain %q", stderr, tt.stderr)
			}
		})
	}
}

func TestRenderUsesConfig(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"markout.yaml":    "docroot: site\n",
		"site/index.html": "<p>configured</p>",
	})
	code, out, stderr := runCLI(t, "render", "index", "-C", dir)
	if code != 0 || out != "<p>configured</p>" {
		t.Errorf("got %d %q (stderr %q)", code, out, stderr)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"good.yaml":    testSpec,
		"unknown.yaml": "id: \"0\"\nvalues:\n  a: {fn: nope}\n",
		"broken.yaml":  "id: \"0\"\nvalues:\n  a: {val: 1, ref: b}\n",
	})
	path := func(name string) string { return filepath.Join(dir, name) }

	code, out, _ := runCLI(t, "check", path("good.yaml"))
	if code != 0 || !strings.Contains(out, "good.yaml: 2 scopes") {
		t.Errorf("got %d %q", code, out)
	}

	code, _, stderr := runCLI(t, "check", path("unknown.yaml"))
	if code != 1 || !strings.Contains(stderr, "E202") {
		t.Errorf("got %d %q", code, stderr)
	}

	code, _, stderr = runCLI(t, "check", path("broken.yaml"), path("good.yaml"))
	if code != 1 {
		t.Errorf("expected failure, got %d", code)
	}
	for _, want := range []string{"E201", "broken.yaml:3"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr %q does not contain %q", stderr, want)
		}
	}
}

func TestCheckReportsEveryFailure(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.yaml": "values: {}\n",
		"b.yaml": "id: \"0\"\nvalues: {a: {fn: nope}}\n",
	})
	code, _, stderr := runCLI(t, "check", filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml"))
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	for _, want := range []string{"E201", "E202"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr %q does not contain %q", stderr, want)
		}
	}
}

func TestServeValidatesFlags(t *testing.T) {
	dir := t.TempDir()
	code, _, stderr := runCLI(t, "serve", "--port", "70000", "-C", dir)
	if code != 1 || !strings.Contains(stderr, "E102") {
		t.Errorf("got %d %q", code, stderr)
	}

	code, _, stderr = runCLI(t, "serve", filepath.Join(dir, "missing"))
	if code != 1 || !strings.Contains(stderr, "E104") {
		t.Errorf("got %d %q", code, stderr)
	}
}
