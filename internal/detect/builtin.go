package detect

// BuiltinPatterns returns the pattern definitions shipped with the tool.
// Workspace and custom sources are merged on top of these by name (see Merge).
func BuiltinPatterns() []Pattern {
	return []Pattern{
		{
			Name:             "npm-error",
			Enabled:          true,
			Type:             "npm",
			Regex:            `npm ERR! (.*)`,
			Priority:         100,
			GroupConsecutive: true,
			Context:          ContextWindow{Above: 2, Below: 2},
		},
		{
			Name:             "node-uncaught",
			Enabled:          true,
			Type:             "node",
			Regex:            `(?:Uncaught\s+)?(\w*Error: .*)`,
			Priority:         90,
			GroupConsecutive: false,
			Context:          ContextWindow{Above: 1, Below: 3},
			StackTrace:       &StackTraceConfig{MaxDepth: 15},
			Extractors: []FieldExtractor{
				{Field: "file", Regex: `\(?(/[^\s:()]+):\d+`, Group: 1},
				{Field: "line", Regex: `\(?/[^\s:()]+:(\d+)`, Group: 1},
			},
		},
		{
			Name:             "python-traceback",
			Enabled:          true,
			Type:             "python",
			Regex:            `^(\w+(?:\.\w+)*(?:Error|Exception|Warning): .*)`,
			Priority:         90,
			GroupConsecutive: false,
			Context:          ContextWindow{Above: 4, Below: 1},
		},
		{
			Name:             "python-module-not-found",
			Enabled:          true,
			Type:             "python",
			Regex:            `(ModuleNotFoundError: No module named .*)`,
			Priority:         95,
			GroupConsecutive: false,
			Context:          ContextWindow{Above: 2, Below: 1},
		},
		{
			Name:             "python-file-line",
			Enabled:          true,
			Type:             "python",
			Regex:            `^\s+File "([^"]+)", line (\d+)`,
			Priority:         40,
			GroupConsecutive: true,
			Context:          ContextWindow{Above: 1, Below: 2},
			Extractors: []FieldExtractor{
				{Field: "file", Regex: `File "([^"]+)"`, Group: 1},
				{Field: "line", Regex: `line (\d+)`, Group: 1},
			},
		},
		{
			Name:             "go-build-error",
			Enabled:          true,
			Type:             "go",
			Regex:            `^([\w./\-]+\.go):(?:\d+):(?:\d+): (?:.*)`,
			Priority:         85,
			GroupConsecutive: true,
			Context:          ContextWindow{Above: 1, Below: 2},
			Extractors: []FieldExtractor{
				{Field: "file", Regex: `^([\w./\-]+\.go):`, Group: 1},
				{Field: "line", Regex: `\.go:(\d+):`, Group: 1},
			},
		},
		{
			Name:             "go-panic",
			Enabled:          true,
			Type:             "go",
			Regex:            `^panic: (.*)`,
			Priority:         95,
			GroupConsecutive: false,
			Context:          ContextWindow{Above: 1, Below: 5},
		},
		{
			Name:             "rust-error",
			Enabled:          true,
			Type:             "rust",
			Regex:            `^error(?:\[E\d+\])?: (.*)`,
			Priority:         85,
			GroupConsecutive: true,
			Context:          ContextWindow{Above: 1, Below: 4},
		},
		{
			Name:             "java-exception",
			Enabled:          true,
			Type:             "java",
			Regex:            `((?:Exception in thread|[\w.]+Exception)[:\s].*)`,
			Priority:         80,
			GroupConsecutive: false,
			Context:          ContextWindow{Above: 1, Below: 3},
			StackTrace:       &StackTraceConfig{MaxDepth: 20},
		},
		{
			Name:             "generic-error",
			Enabled:          true,
			Type:             "generic",
			Regex:            `(?i)^(?:\[?error\]?[:\s]+)(.*)`,
			Priority:         10,
			GroupConsecutive: true,
			Context:          ContextWindow{Above: 2, Below: 2},
		},
		{
			Name:             "command-not-found",
			Enabled:          true,
			Type:             "shell",
			Regex:            `(?:bash|zsh|sh): (?:line \d+: )?([\w.\-]+): command not found`,
			Priority:         70,
			GroupConsecutive: false,
			Context:          ContextWindow{Above: 0, Below: 0},
		},
		{
			Name:             "permission-denied",
			Enabled:          true,
			Type:             "shell",
			Regex:            `(?i)(permission denied.*)`,
			Priority:         60,
			GroupConsecutive: false,
			Context:          ContextWindow{Above: 1, Below: 1},
		},
	}
}
