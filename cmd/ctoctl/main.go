// ctoctl is the operator CLI for the configuration rule engine. It
// talks to a running server over its HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ctoctl",
		Usage: "manage condition rules, simulations and audits",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "base URL of the rule engine server",
				EnvVars: []string{"CTOENGINE_URL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "rule",
				Usage: "manage condition rule versions",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "append a new version of a rule from a JSON logic file",
						ArgsUsage: "<ruleId> <logic.json>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true, Usage: "rule display name"},
							&cli.StringFlag{Name: "description", Usage: "rule description"},
						},
						Action: createRule,
					},
					{
						Name:      "history",
						Usage:     "list all versions of a rule, newest first",
						ArgsUsage: "<ruleId>",
						Action:    ruleHistory,
					},
					{
						Name:      "latest",
						Usage:     "show the latest version of a rule",
						ArgsUsage: "<ruleId>",
						Action:    ruleLatest,
					},
				},
			},
			{
				Name:      "simulate",
				Usage:     "evaluate hypothetical component changes against a configuration",
				ArgsUsage: "<configurationId> <components.json>",
				Action:    simulate,
			},
			{
				Name:      "audit",
				Usage:     "show the committed decision trail of a configuration",
				ArgsUsage: "<configurationId>",
				Action:    showAudit,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func createRule(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: ctoctl rule create <ruleId> <logic.json>", 1)
	}
	ruleID := c.Args().Get(0)

	logicData, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("failed to read logic file: %w", err)
	}

	var logic json.RawMessage
	if err := json.Unmarshal(logicData, &logic); err != nil {
		return fmt.Errorf("logic file is not valid JSON: %w", err)
	}

	body := map[string]any{
		"name":        c.String("name"),
		"description": c.String("description"),
		"logic":       logic,
	}
	return postJSON(c, fmt.Sprintf("/api/v1/rules/%s/versions", ruleID), body)
}

func ruleHistory(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ctoctl rule history <ruleId>", 1)
	}
	return getJSON(c, fmt.Sprintf("/api/v1/rules/%s/versions", c.Args().Get(0)))
}

func ruleLatest(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ctoctl rule latest <ruleId>", 1)
	}
	return getJSON(c, fmt.Sprintf("/api/v1/rules/%s/versions/latest", c.Args().Get(0)))
}

func simulate(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: ctoctl simulate <configurationId> <components.json>", 1)
	}
	configID := c.Args().Get(0)

	componentsData, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("failed to read components file: %w", err)
	}

	var components json.RawMessage
	if err := json.Unmarshal(componentsData, &components); err != nil {
		return fmt.Errorf("components file is not valid JSON: %w", err)
	}

	body := map[string]any{"components": components}
	return postJSON(c, fmt.Sprintf("/api/v1/configurations/%s/simulate", configID), body)
}

func showAudit(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ctoctl audit <configurationId>", 1)
	}
	return getJSON(c, fmt.Sprintf("/api/v1/configurations/%s/audit", c.Args().Get(0)))
}

func postJSON(c *cli.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(c.String("server")+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return printResponse(resp)
}

func getJSON(c *cli.Context, path string) error {
	resp, err := http.Get(c.String("server") + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Write(data)
	}
	fmt.Println(pretty.String())

	if resp.StatusCode >= 400 {
		return cli.Exit(fmt.Sprintf("server returned %s", resp.Status), 1)
	}
	return nil
}
