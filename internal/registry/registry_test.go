package registry

import (
	"os"
	"path/filepath"
	"testing"

	"opskit/internal/config"
	"opskit/internal/logx"
	"opskit/internal/paths"
)

func writeTool(t *testing.T, root, category, name string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, "tools", category, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for file, contents := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testRegistry(t *testing.T, root string, catalog config.Catalog) *Registry {
	t.Helper()
	if catalog.Tools == nil {
		catalog.Tools = map[string]config.ToolMeta{}
	}
	return New(paths.New(root), catalog, logx.Nop())
}

func TestScanDiscoversTools(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "database", "backup", map[string]string{
		"main.py":          "print('hi')",
		"requirements.txt": "requests\n",
		".env":             "PGHOST=localhost\n",
	})
	writeTool(t, root, "network", "portscan", map[string]string{
		"run.sh": "echo scan",
	})

	catalog := config.Catalog{Tools: map[string]config.ToolMeta{
		"database.backup": {
			Version:      "1.2.0",
			Description:  "Dump a database",
			Dependencies: []string{"postgres-client"},
		},
	}}

	tools, err := testRegistry(t, root, catalog).Tools()
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 {
		t.Fatalf("discovered %d tools, want 2", len(tools))
	}

	var backup ToolDescriptor
	for _, tool := range tools {
		if tool.Name == "backup" {
			backup = tool
		}
	}
	if backup.Category != "database" || backup.EntryKind != EntryKindScript {
		t.Fatalf("backup descriptor = %+v", backup)
	}
	if backup.Version != "1.2.0" || len(backup.DeclaredDependencies) != 1 {
		t.Fatalf("catalog metadata not merged: %+v", backup)
	}
	if !backup.HasRequirementManifest || !backup.HasLocalEnvFile {
		t.Fatalf("manifest/env flags wrong: %+v", backup)
	}
}

func TestScanSkipsDirWithoutEntryFile(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "misc", "reserved", map[string]string{
		"README.md": "coming soon",
	})
	writeTool(t, root, "misc", "real", map[string]string{
		"run.sh": "echo ok",
	})

	tools, err := testRegistry(t, root, config.Catalog{}).Tools()
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 || tools[0].Name != "real" {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestScanSkipsAmbiguousEntryFiles(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "misc", "both", map[string]string{
		"main.py": "",
		"run.sh":  "",
	})

	tools, err := testRegistry(t, root, config.Catalog{}).Tools()
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 0 {
		t.Fatalf("ambiguous tool must be skipped, got %+v", tools)
	}
}

func TestScanMissingToolsDir(t *testing.T) {
	tools, err := testRegistry(t, t.TempDir(), config.Catalog{}).Tools()
	if err != nil {
		t.Fatalf("missing tools dir must not error: %v", err)
	}
	if len(tools) != 0 {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestFindAndRefresh(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "misc", "one", map[string]string{"run.sh": ""})
	reg := testRegistry(t, root, config.Catalog{})

	desc, found, err := reg.Find("misc", "one")
	if err != nil || !found {
		t.Fatalf("Find = %v %v", found, err)
	}
	if desc.EntryFile != "run.sh" {
		t.Fatalf("entry file = %q", desc.EntryFile)
	}

	if _, found, _ := reg.Find("misc", "two"); found {
		t.Fatal("unexpected hit before the tool exists")
	}

	// New tools appear only after an explicit refresh.
	writeTool(t, root, "misc", "two", map[string]string{"run.sh": ""})
	if _, found, _ := reg.Find("misc", "two"); found {
		t.Fatal("cached scan must not see the new tool")
	}
	if _, err := reg.Refresh(); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := reg.Find("misc", "two"); !found {
		t.Fatal("refresh must pick up the new tool")
	}
}
