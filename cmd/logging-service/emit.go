package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/emitter"
	"github.com/Log-Tools/logging-pipeline/internal/logging"
	"github.com/spf13/cobra"
)

var (
	emitService string
	emitAction  string
	emitData    string
	emitLevel   string
	emitTopic   string
	emitCount   int
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Publish log messages the way business services do",
	Long: `Publishes one or more JSON log messages to a log topic. Messages are keyed by
service so that one service's logs stay ordered.

Examples:
  logging-service emit --service user-service --action getUsers
  logging-service emit --service create-user-service --action createUser \
    --topic create-user-logs --level warn --data '{"email":"a@b.c"}' --count 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEmit(cmd.Context())
	},
}

func init() {
	emitCmd.Flags().StringVar(&emitService, "service", "", "emitting service name (required)")
	emitCmd.Flags().StringVar(&emitAction, "action", "", "action performed (required)")
	emitCmd.Flags().StringVar(&emitData, "data", "", "JSON payload")
	emitCmd.Flags().StringVar(&emitLevel, "level", string(events.LevelInfo), "level: INFO, WARN, ERROR, DEBUG")
	emitCmd.Flags().StringVarP(&emitTopic, "topic", "t", "", "destination topic (default: kafka.emit_topic)")
	emitCmd.Flags().IntVarP(&emitCount, "count", "n", 1, "number of messages to publish")
	_ = emitCmd.MarkFlagRequired("service")
	_ = emitCmd.MarkFlagRequired("action")
}

func runEmit(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if emitTopic != "" {
		cfg.Kafka.EmitTopic = emitTopic
	}
	if emitCount < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	var data interface{}
	if emitData != "" {
		if !json.Valid([]byte(emitData)) {
			return fmt.Errorf("data is not valid JSON: %s", emitData)
		}
		data = json.RawMessage(emitData)
	}

	level := events.ParseLevel(emitLevel)
	msg, err := emitter.NewMessage(emitService, emitAction, data, level)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging)
	e, err := emitter.NewFromConfig(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	for i := 0; i < emitCount; i++ {
		if err := e.Emit(ctx, msg); err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
	}

	if pending := e.Flush(); pending > 0 {
		return fmt.Errorf("%d message(s) not delivered within %dms", pending, cfg.Kafka.FlushTimeoutMs)
	}
	fmt.Printf("Published %d message(s) to %s (service=%s, action=%s, level=%s)\n",
		emitCount, e.Topic(), msg.Service, msg.Action, msg.Level)
	return nil
}
