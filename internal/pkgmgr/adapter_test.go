package pkgmgr

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeRunner struct {
	results map[string]Result
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, inv Invocation, _ time.Duration) Result {
	key := inv.String()
	f.calls = append(f.calls, key)
	if result, ok := f.results[key]; ok {
		return result
	}
	return Result{Err: errors.New("unexpected invocation: " + key)}
}

func testAdapter(desc Descriptor, runner Runner) *Adapter {
	return NewAdapter(desc, runner, zap.NewNop().Sugar())
}

func TestParseListDpkgStyle(t *testing.T) {
	rule := ParseRule{
		SkipLines:       1,
		LinePrefix:      "ii",
		FieldIndex:      1,
		SuffixCutTokens: []string{":"},
	}
	output := strings.Join([]string{
		"Name          Version      Description",
		"ii  curl:amd64   7.68.0     command line tool",
		"ii  jq           1.6        JSON processor",
		"rc  oldpkg       0.1        removed package",
		"",
	}, "\n")

	names := parseList(rule, output)
	want := []string{"curl", "jq"}
	if len(names) != len(want) {
		t.Fatalf("parseList returned %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("parseList[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestParseListSeparatorAndExcludes(t *testing.T) {
	rule := ParseRule{
		SkipLines:       2,
		LinePrefix:      "i",
		ExcludePrefixes: []string{"i+"},
		Separator:       "|",
		FieldIndex:      1,
	}
	output := strings.Join([]string{
		"Loading repository data...",
		"S  | Name | Summary",
		"i  | curl | transfer tool",
		"i+ | held | held package",
		"   | notinstalled | nope",
	}, "\n")

	names := parseList(rule, output)
	if len(names) != 1 || names[0] != "curl" {
		t.Fatalf("parseList = %v, want [curl]", names)
	}
}

func TestParseListSkipBeyondOutput(t *testing.T) {
	rule := ParseRule{SkipLines: 10, FieldIndex: 0}
	if names := parseList(rule, "only\ntwo"); names != nil {
		t.Fatalf("expected nil, got %v", names)
	}
}

func TestDetectFailureModes(t *testing.T) {
	desc := Descriptor{
		Name:   "apt",
		Detect: Invocation{Argv: []string{"apt-get", "--version"}},
	}

	cases := map[string]Result{
		"nonzero": {ExitCode: 100},
		"missing": {Err: errors.New("executable file not found"), ExitCode: -1},
		"timeout": {TimedOut: true, ExitCode: -1},
	}
	for name, result := range cases {
		runner := &fakeRunner{results: map[string]Result{"apt-get --version": result}}
		if testAdapter(desc, runner).Detect(context.Background()) {
			t.Fatalf("%s: Detect = true, want false", name)
		}
	}

	runner := &fakeRunner{results: map[string]Result{"apt-get --version": {}}}
	if !testAdapter(desc, runner).Detect(context.Background()) {
		t.Fatal("Detect = false for zero exit")
	}
}

func TestListInstalledFailureYieldsEmpty(t *testing.T) {
	desc := Descriptor{
		Name: "apt",
		List: Invocation{Argv: []string{"dpkg", "-l"}},
		Rule: ParseRule{FieldIndex: 0},
	}
	runner := &fakeRunner{results: map[string]Result{"dpkg -l": {TimedOut: true, ExitCode: -1}}}

	if names := testAdapter(desc, runner).ListInstalled(context.Background()); len(names) != 0 {
		t.Fatalf("expected empty list on timeout, got %v", names)
	}
}

func TestIsInstalledListFallback(t *testing.T) {
	desc := Descriptor{
		Name: "plain",
		List: Invocation{Argv: []string{"plain", "list"}},
		Rule: ParseRule{FieldIndex: 0},
	}
	runner := &fakeRunner{results: map[string]Result{
		"plain list": {Stdout: []byte("curl\njq\n")},
	}}
	adapter := testAdapter(desc, runner)

	if !adapter.IsInstalled(context.Background(), "jq") {
		t.Fatal("expected jq installed via list fallback")
	}
	if adapter.IsInstalled(context.Background(), "htop") {
		t.Fatal("expected htop missing")
	}
}

func TestIsInstalledDedicatedCheck(t *testing.T) {
	desc := Descriptor{
		Name:                "apt",
		IsInstalledTemplate: CommandTemplate{Argv: []string{"dpkg", "-s", "{package}"}},
	}
	runner := &fakeRunner{results: map[string]Result{
		"dpkg -s curl": {},
		"dpkg -s htop": {ExitCode: 1},
	}}
	adapter := testAdapter(desc, runner)

	if !adapter.IsInstalled(context.Background(), "curl") {
		t.Fatal("expected curl installed")
	}
	if adapter.IsInstalled(context.Background(), "htop") {
		t.Fatal("expected htop missing")
	}
}

func TestInstallSurfacesOutputAndTimeout(t *testing.T) {
	desc := Descriptor{
		Name:            "apt",
		InstallTemplate: CommandTemplate{Argv: []string{"apt-get", "install", "-y", "{package}"}},
	}
	runner := &fakeRunner{results: map[string]Result{
		"apt-get install -y curl": {ExitCode: 100, Stderr: []byte("unable to locate package")},
		"apt-get install -y slow": {TimedOut: true, ExitCode: -1},
	}}
	adapter := testAdapter(desc, runner)

	result := adapter.Install(context.Background(), "curl")
	if result.Ok {
		t.Fatal("expected install failure")
	}
	if !strings.Contains(result.Output, "unable to locate package") {
		t.Fatalf("output %q missing manager message", result.Output)
	}

	result = adapter.Install(context.Background(), "slow")
	if result.Ok || !result.TimedOut {
		t.Fatalf("expected timed-out failure, got %+v", result)
	}
}

func TestPipelineTemplateRendersShell(t *testing.T) {
	tmpl := CommandTemplate{Pipeline: "mgr list '{package}' | grep -q '{package}'"}
	inv := tmpl.Render("curl")
	if inv.Pipeline != "mgr list 'curl' | grep -q 'curl'" {
		t.Fatalf("unexpected pipeline %q", inv.Pipeline)
	}
	if len(inv.Argv) != 0 {
		t.Fatal("pipeline invocation must not carry argv")
	}
}
