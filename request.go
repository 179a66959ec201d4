package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quizdesk/quizctl/internal/api"
)

// requestOutput is the JSON schema for request commands with --json.
type requestOutput struct {
	Status    int             `json:"status"`
	Synthetic bool            `json:"synthetic"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// newRequestCmds returns one command per HTTP verb. Each sends a request
// through the full pipeline: bearer injection, renewal on 401, and degraded
// mode fallback.
func newRequestCmds() []*cobra.Command {
	return []*cobra.Command{
		newRequestCmd(http.MethodGet, false),
		newRequestCmd(http.MethodDelete, false),
		newRequestCmd(http.MethodPost, true),
		newRequestCmd(http.MethodPut, true),
		newRequestCmd(http.MethodPatch, true),
	}
}

func newRequestCmd(method string, withBody bool) *cobra.Command {
	var (
		query []string
		data  string
	)

	verb := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   verb + " <path>",
		Short: fmt.Sprintf("Send a %s request to the API", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, method, args[0], query, data)
		},
	}

	cmd.Flags().StringArrayVar(&query, "query", nil, "query parameter as key=value (repeatable)")

	if withBody {
		cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body, or @file to read it from a file, or @- for stdin")
	}

	return cmd
}

func runRequest(cmd *cobra.Command, method, path string, query []string, data string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	q, err := parseQuery(query)
	if err != nil {
		return err
	}

	body, err := readBody(data, cmd.InOrStdin())
	if err != nil {
		return err
	}

	var opts []api.RequestOption
	if len(q) > 0 {
		opts = append(opts, api.WithQuery(q))
	}

	return withApp(ctx, cc, func(a *app) error {
		var reqBody any
		if body != nil {
			reqBody = body
		}

		resp, err := a.client.Do(ctx, method, path, reqBody, opts...)
		if err != nil {
			return err
		}

		if cc.Flags.JSON {
			return printJSON(cc.Out, requestOutput{Status: resp.Status, Synthetic: resp.Synthetic, Data: resp.Data})
		}

		if resp.Synthetic {
			cc.Statusf("(placeholder response, backend unreachable)\n")
		}

		return printRawJSON(cc.Out, resp.Data)
	})
}

// parseQuery turns key=value pairs into url.Values.
func parseQuery(pairs []string) (url.Values, error) {
	q := url.Values{}

	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --query %q: expected key=value", p)
		}

		q.Add(k, v)
	}

	return q, nil
}

// readBody resolves the --data flag. The body must be valid JSON.
func readBody(data string, stdin io.Reader) (json.RawMessage, error) {
	if data == "" {
		return nil, nil
	}

	raw := []byte(data)

	switch {
	case data == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading body from stdin: %w", err)
		}

		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}

		raw = b
	}

	if !json.Valid(raw) {
		return nil, errors.New("request body is not valid JSON")
	}

	return json.RawMessage(raw), nil
}
