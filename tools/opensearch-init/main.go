package main

import (
	"context"
	"flag"
	"time"

	"github.com/Log-Tools/logging-pipeline/internal/config"
	"github.com/Log-Tools/logging-pipeline/internal/logging"
	"github.com/Log-Tools/logging-pipeline/internal/provision"
	"github.com/Log-Tools/logging-pipeline/internal/sink"
)

func main() {
	var (
		addr        = flag.String("addr", "http://localhost:9200", "OpenSearch address")
		username    = flag.String("username", "", "OpenSearch username")
		password    = flag.String("password", "", "OpenSearch password")
		prefix      = flag.String("prefix", "microservices-logs", "Log index prefix")
		template    = flag.String("template", "", "Index template name (defaults to the prefix)")
		mappingFile = flag.String("mapping", "", "Template JSON file (defaults to the built-in log mapping)")
	)
	flag.Parse()

	logger := logging.New(config.LoggingConfig{Level: "info", Format: "console"})

	name := *template
	if name == "" {
		name = *prefix
	}

	backend, err := sink.NewOpenSearchBackend(config.OpenSearchConfig{
		Addresses: []string{*addr},
		Username:  *username,
		Password:  *password,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create client")
	}

	body, err := provision.TemplateBody(*mappingFile, *prefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build template")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := provision.InstallTemplate(ctx, backend, name, body); err != nil {
		logger.Fatal().Err(err).Msg("OpenSearch error")
	}
	logger.Info().Str("template", name).Str("pattern", sink.IndexPattern(*prefix, true)).Msg("Template created")
}
