// Package provision prepares a freshly deployed tree for serving: create
// the virtualenv, install dependencies, seed the environment file, and
// optionally restart the app.
package provision

import (
	"fmt"
	"strings"
	"text/template"
)

// Params describes what the bootstrap script should set up.
type Params struct {
	RemotePath   string
	Python       string // python binary, e.g. python3
	Requirements string // requirements file relative to RemotePath
	AppEntry     string // streamlit entrypoint relative to RemotePath
	AppPort      int
	Start        bool // restart the app after installing
}

// Defaults for unset Params fields.
const (
	DefaultPython       = "python3"
	DefaultRequirements = "requirements.txt"
	DefaultAppEntry     = "app/main.py"
	DefaultAppPort      = 8501
)

var scriptTmpl = template.Must(template.New("bootstrap").Parse(`set -eu
cd {{.RemotePath}}
if [ ! -d .venv ]; then
  {{.Python}} -m venv .venv
fi
.venv/bin/pip install --quiet --upgrade pip
.venv/bin/pip install --quiet -r {{.Requirements}}
{{- if .Start}}
pkill -f "streamlit run" 2>/dev/null || true
nohup .venv/bin/streamlit run {{.AppEntry}} --server.port {{.AppPort}} --server.address 0.0.0.0 >> app.log 2>&1 &
echo "app started on port {{.AppPort}}"
{{- end}}
echo "bootstrap complete"
`))

// Script renders the bootstrap shell script for p. Unset fields get
// defaults.
func Script(p Params) (string, error) {
	if p.RemotePath == "" {
		return "", fmt.Errorf("remote path required")
	}
	if p.Python == "" {
		p.Python = DefaultPython
	}
	if p.Requirements == "" {
		p.Requirements = DefaultRequirements
	}
	if p.AppEntry == "" {
		p.AppEntry = DefaultAppEntry
	}
	if p.AppPort == 0 {
		p.AppPort = DefaultAppPort
	}

	var b strings.Builder
	if err := scriptTmpl.Execute(&b, p); err != nil {
		return "", fmt.Errorf("render bootstrap script: %w", err)
	}
	return b.String(), nil
}
