package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/helixquant/backsim/internal/engine"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:   "schema",
		Usage:  "Print the JSON schema for the engine configuration",
		Action: schemaAction,
	}
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	config := engine.DefaultConfig()
	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return err
	}
	fmt.Println(schema)
	return nil
}
