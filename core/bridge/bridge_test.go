package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoScript answers every request with an ok envelope carrying the same id.
const echoScript = `#!/bin/sh
while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  printf '{"version":"v1","id":"%s","ok":true}\n' "$id"
done
`

// writePlugin lays out <dir>/<id>/plugin.yaml plus <id>.sh with the given body.
func writePlugin(t *testing.T, dir, id, prefix, script string) {
	t.Helper()
	pdir := filepath.Join(dir, id)
	if err := os.MkdirAll(pdir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := "prefix: \"" + prefix + "\"\n"
	if err := os.WriteFile(filepath.Join(pdir, ManifestName), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(pdir, id+".sh"), []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestResolveBuildsTableFromManifests(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "Help", "/help", echoScript)
	writePlugin(t, dir, "Ping", "/ping", echoScript)

	// Not plugins: a bare directory and a stray file.
	os.MkdirAll(filepath.Join(dir, "notes"), 0o755)
	os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644)

	b := New(dir, "http://api.test", testLogger())
	table, err := b.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := Table{{Prefix: "/help", Plugin: "Help"}, {Prefix: "/ping", Plugin: "Ping"}}
	if !table.Equal(want) {
		t.Fatalf("table = %v, want %v", table, want)
	}
}

func TestResolveDuplicatePrefixLastDirectoryWins(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "Alpha", "/cmd", echoScript)
	writePlugin(t, dir, "Beta", "/cmd", echoScript)

	b := New(dir, "", testLogger())
	table, err := b.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("table = %v, want one binding", table)
	}
	if table[0].Plugin != "Beta" {
		t.Errorf("binding = %v, want the later directory Beta", table[0])
	}
}

func TestResolveSkipsUnreadableManifest(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "Good", "/good", echoScript)

	bad := filepath.Join(dir, "Bad")
	os.MkdirAll(bad, 0o755)
	os.WriteFile(filepath.Join(bad, ManifestName), []byte("prefix: [unclosed"), 0o644)

	b := New(dir, "", testLogger())
	table, err := b.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(table) != 1 || table[0].Plugin != "Good" {
		t.Fatalf("table = %v, want only Good", table)
	}
}

func TestResolveMissingDirectory(t *testing.T) {
	b := New(filepath.Join(t.TempDir(), "nope"), "", testLogger())
	if _, err := b.Resolve(); err == nil {
		t.Fatal("Resolve() = nil error for missing directory")
	}
}

func TestTableLookup(t *testing.T) {
	table := Table{{Prefix: "/a", Plugin: "A"}, {Prefix: "", Plugin: "CatchAll"}}

	if id, ok := table.Lookup("/a"); !ok || id != "A" {
		t.Errorf("Lookup(/a) = %q, %v", id, ok)
	}
	if id, ok := table.Lookup(""); !ok || id != "CatchAll" {
		t.Errorf("Lookup(\"\") = %q, %v", id, ok)
	}
	if _, ok := table.Lookup("/missing"); ok {
		t.Error("Lookup(/missing) = true")
	}
}

func TestTableEqualOrderMatters(t *testing.T) {
	a := Table{{Prefix: "/a", Plugin: "A"}, {Prefix: "/b", Plugin: "B"}}
	b := Table{{Prefix: "/b", Plugin: "B"}, {Prefix: "/a", Plugin: "A"}}

	if !a.Equal(a) {
		t.Error("table not equal to itself")
	}
	if a.Equal(b) {
		t.Error("reordered tables reported equal")
	}
	if a.Equal(a[:1]) {
		t.Error("tables of different length reported equal")
	}
}

func TestLoadInvokeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "Echo", "/echo", echoScript)

	b := New(dir, "http://api.test", testLogger())
	defer b.Shutdown()

	h, err := b.Load("Echo")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	msg := json.RawMessage(`{"chat_id":1,"kind":"text","payload":"/echo hi"}`)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.Invoke(ctx, msg); err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	// A second load with no source change reuses the running process.
	again, err := b.Load("Echo")
	if err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if again != h {
		t.Error("unchanged plugin was reloaded")
	}
}

func TestLoadReloadsWhenSourceChanges(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "Echo", "/echo", echoScript)

	b := New(dir, "", testLogger())
	defer b.Shutdown()

	h1, err := b.Load("Echo")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	src := filepath.Join(dir, "Echo", "Echo.sh")
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatal(err)
	}

	h2, err := b.Load("Echo")
	if err != nil {
		t.Fatalf("Load() after change error: %v", err)
	}
	if h2 == h1 {
		t.Fatal("changed plugin was not reloaded")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h2.Invoke(ctx, json.RawMessage(`{}`)); err != nil {
		t.Errorf("Invoke() on reloaded plugin: %v", err)
	}

	// Stable mtime from here on: no further reload.
	h3, err := b.Load("Echo")
	if err != nil {
		t.Fatalf("third Load() error: %v", err)
	}
	if h3 != h2 {
		t.Error("plugin reloaded twice for one source change")
	}
}

func TestLoadManifestSourceOverride(t *testing.T) {
	dir := t.TempDir()
	pdir := filepath.Join(dir, "Custom")
	os.MkdirAll(pdir, 0o755)
	os.WriteFile(filepath.Join(pdir, ManifestName),
		[]byte("prefix: \"/c\"\nsource: run.sh\n"), 0o644)
	os.WriteFile(filepath.Join(pdir, "run.sh"), []byte(echoScript), 0o755)

	b := New(dir, "", testLogger())
	defer b.Shutdown()

	h, err := b.Load("Custom")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.Invoke(ctx, json.RawMessage(`{}`)); err != nil {
		t.Errorf("Invoke() error: %v", err)
	}
}

func TestLoadMissingSourceFile(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "Empty", "/e", "")

	b := New(dir, "", testLogger())
	if _, err := b.Load("Empty"); err == nil {
		t.Fatal("Load() = nil error for plugin without a source file")
	}
}

func TestInvokeReturnsResponseData(t *testing.T) {
	dataScript := `#!/bin/sh
while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  printf '{"version":"v1","id":"%s","ok":true,"data":{"delete_after":{"delay_seconds":3,"chat_id":1,"message_id":2}}}\n' "$id"
done
`
	dir := t.TempDir()
	writePlugin(t, dir, "Data", "/d", dataScript)

	b := New(dir, "", testLogger())
	defer b.Shutdown()

	h, err := b.Load("Data")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := h.Invoke(ctx, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	var d Directives
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if d.DeleteAfter == nil || d.DeleteAfter.DelaySeconds != 3 {
		t.Errorf("directives = %+v, want delete_after with delay 3", d)
	}
}

func TestInvokeErrorResponse(t *testing.T) {
	failScript := `#!/bin/sh
while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  printf '{"version":"v1","id":"%s","ok":false,"error":{"code":"INTERNAL","message":"boom"}}\n' "$id"
done
`
	dir := t.TempDir()
	writePlugin(t, dir, "Fail", "/f", failScript)

	b := New(dir, "", testLogger())
	defer b.Shutdown()

	h, err := b.Load("Fail")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = h.Invoke(ctx, json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "INTERNAL") {
		t.Fatalf("Invoke() = %v, want INTERNAL failure", err)
	}
}

func TestCancelledInvokeForcesReload(t *testing.T) {
	// Reads requests but never answers, so invocations only end by ctx.
	silentScript := `#!/bin/sh
while read line; do
  :
done
`
	dir := t.TempDir()
	writePlugin(t, dir, "Mute", "/m", silentScript)

	b := New(dir, "", testLogger())
	defer b.Shutdown()

	h1, err := b.Load("Mute")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := h1.Invoke(ctx, json.RawMessage(`{}`)); err == nil {
		t.Fatal("Invoke() on a silent plugin returned nil error")
	}

	// The pipe still owes a response line; the handle must refuse to reuse it
	// rather than pair the next request with the stale reply.
	_, err = h1.Invoke(context.Background(), json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "out of sync") {
		t.Fatalf("Invoke() after cancellation = %v, want out-of-sync refusal", err)
	}

	h2, err := b.Load("Mute")
	if err != nil {
		t.Fatalf("Load() after cancellation error: %v", err)
	}
	if h2 == h1 {
		t.Fatal("desynced plugin was not restarted")
	}
}

func TestInvokeRejectsMismatchedID(t *testing.T) {
	wrongIDScript := `#!/bin/sh
while read line; do
  printf '{"version":"v1","id":"inv_stale","ok":true}\n'
done
`
	dir := t.TempDir()
	writePlugin(t, dir, "Stale", "/s", wrongIDScript)

	b := New(dir, "", testLogger())
	defer b.Shutdown()

	h, err := b.Load("Stale")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = h.Invoke(ctx, json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "id mismatch") {
		t.Fatalf("Invoke() = %v, want id mismatch", err)
	}
}
