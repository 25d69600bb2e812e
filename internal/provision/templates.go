package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Log-Tools/logging-pipeline/internal/sink"
)

// TemplateInstaller installs index templates
type TemplateInstaller interface {
	PutIndexTemplate(ctx context.Context, name string, body []byte) error
}

// TemplateBody returns the index template to install. An empty mappingFile
// selects the built-in log mapping for prefix.
func TemplateBody(mappingFile, prefix string) ([]byte, error) {
	if mappingFile == "" {
		return sink.IndexTemplateBody(prefix), nil
	}

	body, err := os.ReadFile(mappingFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read mapping file: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("mapping file %s is not valid JSON", mappingFile)
	}
	return body, nil
}

// InstallTemplate puts the template under name
func InstallTemplate(ctx context.Context, installer TemplateInstaller, name string, body []byte) error {
	if err := installer.PutIndexTemplate(ctx, name, body); err != nil {
		return fmt.Errorf("failed to put template %s: %w", name, err)
	}
	return nil
}
