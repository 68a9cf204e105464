package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"opskit/internal/registry"
)

// ExecutionContext is the per-invocation environment a tool runs under. It
// is built fresh for each run and discarded when the child exits.
type ExecutionContext struct {
	ToolTempDir      string
	BasePath         string
	CallerWorkingDir string
	WorkingDir       string
	InjectedVars     map[string]string
}

// buildContext assembles the context for one tool run: a unique temp
// directory, the caller's original working directory, and the injected
// variables every tool receives.
func (e *Executor) buildContext(desc registry.ToolDescriptor) (ExecutionContext, error) {
	callerDir, err := os.Getwd()
	if err != nil {
		return ExecutionContext{}, fmt.Errorf("resolve caller working dir: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "opskit-"+desc.Name+"-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return ExecutionContext{}, fmt.Errorf("create tool temp dir: %w", err)
	}

	return ExecutionContext{
		ToolTempDir:      tempDir,
		BasePath:         e.paths.Root,
		CallerWorkingDir: callerDir,
		WorkingDir:       desc.Path,
		InjectedVars: map[string]string{
			"OPSKIT_TEMP_DIR":     tempDir,
			"OPSKIT_ROOT":         e.paths.Root,
			"OPSKIT_CALLER_DIR":   callerDir,
			"OPSKIT_TOOL_NAME":    desc.Name,
			"OPSKIT_TOOL_VERSION": desc.Version,
		},
	}, nil
}

// buildEnv layers the process environment, the tool's local env file, and
// the injected variables, in that order. Injected variables are set last so
// they never collide with tool-declared names.
func buildEnv(desc registry.ToolDescriptor, ec ExecutionContext) ([]string, error) {
	env := os.Environ()

	if desc.HasLocalEnvFile {
		local, err := parseEnvFile(desc.LocalEnvPath())
		if err != nil {
			return nil, err
		}
		for key, value := range local {
			env = append(env, key+"="+value)
		}
	}

	for key, value := range ec.InjectedVars {
		env = append(env, key+"="+value)
	}
	return env, nil
}

// parseEnvFile reads KEY=VALUE lines; blanks and # comments are ignored,
// surrounding quotes on values are stripped.
func parseEnvFile(path string) (map[string]string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	vars := map[string]string{}
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if key != "" {
			vars[key] = value
		}
	}
	return vars, nil
}
