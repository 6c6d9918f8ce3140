package linker

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/obernardovieira/solvis/internal/callgraph"
	"github.com/obernardovieira/solvis/internal/parser/solidity"
)

type recordingSink struct {
	name    string
	entries []string
	runs    int
	err     error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) StartRun() {
	s.runs++
	s.entries = nil
}

func (s *recordingSink) Consume(_ context.Context, entry string, u *callgraph.Universe) error {
	// Every call must already be resolved when a sink sees it.
	for _, c := range u.Contracts {
		for _, f := range c.Functions {
			for _, call := range f.Calls {
				if call.ResolvedID == "" {
					return errors.New("unresolved call handed to sink")
				}
			}
		}
	}
	s.entries = append(s.entries, entry)
	return s.err
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLink(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"Base.sol":   `contract Base { function greet() public {} }`,
		"Child.sol":  "import \"./Base.sol\";\ncontract Child is Base { address owner; function hello() public { greet(); } }",
		"Wallet.sol": `contract Wallet { function pay(address to) public {} function run() public { pay(owner); missing(); } }`,
	})
	entries := []string{filepath.Join(dir, "Child.sol"), filepath.Join(dir, "Wallet.sol")}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	first, second := &recordingSink{name: "first"}, &recordingSink{name: "second"}
	l := NewLinker(solidity.NewParser(), callgraph.NewPathResolver(dir), logger, first, second)

	results, err := l.Link(context.Background(), entries)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	child := results[0].Universe
	if len(child.Contracts) != 2 {
		t.Errorf("Child universe has %d contracts, want 2", len(child.Contracts))
	}
	hello, _ := child.Contracts[1].Function("hello")
	if hello.Calls[0].ResolvedID != "Base:greet" {
		t.Errorf("hello -> %s, want Base:greet", hello.Calls[0].ResolvedID)
	}

	// Universes are not merged, but variable types are shared: owner is
	// declared in Child.sol and typed in Wallet.sol's resolution.
	wallet := results[1].Universe
	if len(wallet.Contracts) != 1 {
		t.Errorf("Wallet universe has %d contracts, want 1", len(wallet.Contracts))
	}
	run, _ := wallet.Contracts[0].Function("run")
	if got := run.Calls[0].ResolvedID; got != "Wallet:pay:address" {
		t.Errorf("run -> %s, want Wallet:pay:address", got)
	}
	if results[1].Unresolved != 1 || results[0].Unresolved != 0 {
		t.Errorf("unresolved = %d, %d", results[0].Unresolved, results[1].Unresolved)
	}

	for _, s := range []*recordingSink{first, second} {
		if strings.Join(s.entries, ",") != strings.Join(entries, ",") {
			t.Errorf("sink %s saw %v", s.name, s.entries)
		}
		if s.runs != 1 {
			t.Errorf("sink %s started %d runs, want 1", s.name, s.runs)
		}
	}
	if !strings.Contains(logs.String(), "msg=linked") || !strings.Contains(logs.String(), "unresolved=1") {
		t.Errorf("log output missing link summary:\n%s", logs.String())
	}
}

func TestLinkMissingFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLinker(solidity.NewParser(), callgraph.NewPathResolver(dir), nil)
	_, err := l.Link(context.Background(), []string{filepath.Join(dir, "Nope.sol")})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
	if !strings.HasPrefix(err.Error(), "profile ") {
		t.Errorf("err = %q, want profile context", err)
	}
}

func TestLinkSinkError(t *testing.T) {
	dir := writeFiles(t, map[string]string{"A.sol": `contract A {}`})
	bad := &recordingSink{name: "bad", err: errors.New("disk full")}
	l := NewLinker(solidity.NewParser(), callgraph.NewPathResolver(dir), nil, bad)

	results, err := l.Link(context.Background(), []string{filepath.Join(dir, "A.sol")})
	if err == nil || err.Error() != "sink bad: disk full" {
		t.Fatalf("err = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results should still be returned on sink failure")
	}
}

func TestLinkCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLinker(solidity.NewParser(), nil, nil)
	if _, err := l.Link(ctx, []string{"A.sol"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
