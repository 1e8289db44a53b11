package extract

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jihwankim/fzgo/pkg/model"
)

// Outcome is the result of running one output's pipeline.
type Outcome struct {
	Value any
	Err   string // non-empty on a non-zero exit or execution failure
}

// Extract runs every output pipeline declared on m inside caseDir and
// returns a name->Outcome map. A failure extracting one output never stops
// extraction of the others.
func Extract(caseDir string, m model.Model, resolver *ShellResolver) map[string]Outcome {
	out := make(map[string]Outcome, len(m.Outputs))
	for _, o := range m.Outputs {
		out[o.Name] = runPipeline(caseDir, o.Pipeline, resolver)
	}
	return out
}

func runPipeline(caseDir, pipeline string, resolver *ShellResolver) Outcome {
	command := pipeline
	if resolver != nil {
		command = resolver.ReplaceCommandsInString(pipeline)
	}

	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = caseDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return Outcome{Value: nil, Err: strings.TrimSpace(stderr.String()) + ": " + err.Error()}
	}

	text := strings.TrimSpace(stdout.String())
	return Outcome{Value: Cast(text)}
}

// Cast applies the output casting priority: int, then float, then JSON
// object/array, else the raw string; empty output casts to nil.
func Cast(text string) any {
	if text == "" {
		return nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return text
}
