// Package template renders action parameters against an execution context.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/conductor/pkg/models"
)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"rand": func(max int) int {
		if max <= 0 {
			return 0
		}

		num := make([]byte, 1)

		_, err := rand.Read(num)
		if err != nil {
			return 0
		}

		return int(num[0]) % max
	},
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)

		return string(b), err
	},
}

// Data builds the template root: input, steps, variables (also as vars),
// execution metadata and the process environment.
func Data(executionCtx *models.ExecutionContext) map[string]any {
	data := executionCtx.Data()
	data["env"] = envVars()

	return data
}

// RenderWithContext renders a template against an execution context and
// decodes the result.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	return Render(input, Data(executionCtx))
}

// RenderString renders a template against an execution context and returns
// the raw text.
func RenderString(input string, executionCtx *models.ExecutionContext) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	return execute(input, Data(executionCtx))
}

// Parse checks the template syntax.
func Parse(templateStr string) (*template.Template, error) {
	tmpl, err := template.New("param").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return tmpl, nil
}

// Render executes templateStr and decodes the output: JSON objects and
// arrays, numbers and booleans come back typed, anything else as a string.
func Render(templateStr string, data any) (any, error) {
	out, err := execute(templateStr, data)
	if err != nil {
		return nil, err
	}

	result := strings.TrimSpace(out)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return jsonResult, nil
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func execute(templateStr string, data any) (string, error) {
	tmpl, err := Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
