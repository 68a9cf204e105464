package pkgmgr

import "strings"

// ParseRule describes how to turn one package manager's list output into
// bare package names.
type ParseRule struct {
	SkipLines       int
	LinePrefix      string
	ExcludePrefixes []string
	FieldIndex      int
	Separator       string // empty means any whitespace
	SuffixCutTokens []string
}

// CommandTemplate is an invocation with a {package} placeholder. Pipeline
// templates run through a shell; argv templates never do.
type CommandTemplate struct {
	Argv     []string
	Pipeline string
}

// IsZero reports whether the template carries no command.
func (t CommandTemplate) IsZero() bool {
	return len(t.Argv) == 0 && t.Pipeline == ""
}

// Render substitutes the package name into the template.
func (t CommandTemplate) Render(pkg string) Invocation {
	if t.Pipeline != "" {
		return Invocation{Pipeline: strings.ReplaceAll(t.Pipeline, "{package}", pkg)}
	}
	argv := make([]string, len(t.Argv))
	for i, arg := range t.Argv {
		argv[i] = strings.ReplaceAll(arg, "{package}", pkg)
	}
	return Invocation{Argv: argv}
}

// Descriptor is the static, data-only description of one package manager.
// Behavior differs per manager only through this data.
type Descriptor struct {
	Name                string
	Detect              Invocation
	InstallTemplate     CommandTemplate
	List                Invocation
	IsInstalledTemplate CommandTemplate
	QueryTemplate       CommandTemplate
	Rule                ParseRule
}

// catalog holds the supported managers per OS family, in no preference
// order; the dependency document's settings decide which to try first.
var catalog = map[string][]Descriptor{
	"linux": {
		{
			Name:                "apt",
			Detect:              Invocation{Argv: []string{"apt-get", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "apt-get", "install", "-y", "{package}"}},
			List:                Invocation{Argv: []string{"dpkg", "-l"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"dpkg", "-s", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"apt-cache", "show", "{package}"}},
			Rule: ParseRule{
				SkipLines:       5,
				LinePrefix:      "ii",
				FieldIndex:      1,
				SuffixCutTokens: []string{":"},
			},
		},
		{
			Name:                "dnf",
			Detect:              Invocation{Argv: []string{"dnf", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "dnf", "install", "-y", "{package}"}},
			List:                Invocation{Argv: []string{"dnf", "list", "installed"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"dnf", "list", "installed", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"dnf", "info", "{package}"}},
			Rule: ParseRule{
				SkipLines:       1,
				FieldIndex:      0,
				SuffixCutTokens: []string{"."},
			},
		},
		{
			Name:                "yum",
			Detect:              Invocation{Argv: []string{"yum", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "yum", "install", "-y", "{package}"}},
			List:                Invocation{Argv: []string{"yum", "list", "installed"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"yum", "list", "installed", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"yum", "info", "{package}"}},
			Rule: ParseRule{
				SkipLines:       1,
				ExcludePrefixes: []string{"Installed", "Loaded"},
				FieldIndex:      0,
				SuffixCutTokens: []string{"."},
			},
		},
		{
			Name:                "pacman",
			Detect:              Invocation{Argv: []string{"pacman", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "pacman", "-S", "--noconfirm", "{package}"}},
			List:                Invocation{Argv: []string{"pacman", "-Q"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"pacman", "-Qi", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"pacman", "-Si", "{package}"}},
			Rule:                ParseRule{FieldIndex: 0},
		},
		{
			Name:                "zypper",
			Detect:              Invocation{Argv: []string{"zypper", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "zypper", "install", "-y", "{package}"}},
			List:                Invocation{Argv: []string{"zypper", "se", "--installed-only"}},
			IsInstalledTemplate: CommandTemplate{Pipeline: "zypper se --installed-only '{package}' | grep -q '^i'"},
			QueryTemplate:       CommandTemplate{Argv: []string{"zypper", "info", "{package}"}},
			Rule: ParseRule{
				SkipLines:  5,
				LinePrefix: "i",
				Separator:  "|",
				FieldIndex: 1,
			},
		},
		{
			Name:                "apk",
			Detect:              Invocation{Argv: []string{"apk", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "apk", "add", "{package}"}},
			List:                Invocation{Argv: []string{"apk", "info"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"apk", "info", "-e", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"apk", "info", "{package}"}},
			Rule:                ParseRule{FieldIndex: 0},
		},
		{
			Name:                "snap",
			Detect:              Invocation{Argv: []string{"snap", "version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "snap", "install", "{package}"}},
			List:                Invocation{Argv: []string{"snap", "list"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"snap", "list", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"snap", "info", "{package}"}},
			Rule: ParseRule{
				SkipLines:  1,
				FieldIndex: 0,
			},
		},
		{
			Name:                "flatpak",
			Detect:              Invocation{Argv: []string{"flatpak", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "flatpak", "install", "-y", "{package}"}},
			List:                Invocation{Argv: []string{"flatpak", "list", "--columns=application"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"flatpak", "info", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"flatpak", "remote-info", "flathub", "{package}"}},
			Rule:                ParseRule{FieldIndex: 0},
		},
	},
	"darwin": {
		{
			Name:                "brew",
			Detect:              Invocation{Argv: []string{"brew", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"brew", "install", "{package}"}},
			List:                Invocation{Argv: []string{"brew", "list", "--formula"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"brew", "list", "--formula", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"brew", "info", "{package}"}},
			Rule:                ParseRule{FieldIndex: 0},
		},
		{
			Name:                "port",
			Detect:              Invocation{Argv: []string{"port", "version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "port", "install", "{package}"}},
			List:                Invocation{Argv: []string{"port", "installed"}},
			IsInstalledTemplate: CommandTemplate{Pipeline: "port installed '{package}' | grep -q @"},
			QueryTemplate:       CommandTemplate{Argv: []string{"port", "info", "{package}"}},
			Rule: ParseRule{
				SkipLines:  1,
				FieldIndex: 0,
			},
		},
	},
	"freebsd": {
		{
			Name:                "pkg",
			Detect:              Invocation{Argv: []string{"pkg", "--version"}},
			InstallTemplate:     CommandTemplate{Argv: []string{"sudo", "pkg", "install", "-y", "{package}"}},
			List:                Invocation{Argv: []string{"pkg", "query", "-a", "%n"}},
			IsInstalledTemplate: CommandTemplate{Argv: []string{"pkg", "info", "-e", "{package}"}},
			QueryTemplate:       CommandTemplate{Argv: []string{"pkg", "search", "-e", "{package}"}},
			Rule:                ParseRule{FieldIndex: 0},
		},
	},
}

// Lookup returns the descriptor for a manager on a platform. A miss is a
// non-fatal signal to try the next preferred manager.
func Lookup(platform, name string) (Descriptor, bool) {
	for _, desc := range catalog[platform] {
		if desc.Name == name {
			return desc, true
		}
	}
	return Descriptor{}, false
}

// Names returns the managers known for a platform, in catalog order.
func Names(platform string) []string {
	descs := catalog[platform]
	names := make([]string, 0, len(descs))
	for _, desc := range descs {
		names = append(names, desc.Name)
	}
	return names
}
