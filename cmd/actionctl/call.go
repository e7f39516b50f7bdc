package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"server-actions/backend/internal/action"
)

func newCallCommand(opts *rootOptions) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "call <domain.verb> [json|-]",
		Short: "Invoke an entry point",
		Long: `Invoke an entry point with a JSON object as input.

Usage examples:

	actionctl call post.list '{"limit": 5}'
	actionctl call post.get --input '{"post_id": "..."}' --output json
	echo '{"title": "Hello"}' | actionctl call post.create -
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := input
			if len(args) == 2 {
				raw = args[1]
			}
			if raw == "" {
				raw = "{}"
			}
			if raw == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				raw = string(b)
			}
			input, err := parseInput(raw)
			if err != nil {
				return err
			}

			conn, err := grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			out, err := call(ctx, conn, opts.token, args[0], input)
			if err != nil {
				return describeError(cmd.ErrOrStderr(), err)
			}
			result := out.AsMap()
			if output == "table" {
				if rows, ok := listRows(result); ok {
					renderRows(cmd.OutOrStdout(), rows)
					return nil
				}
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Input JSON object (alternative to the positional argument)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format for list results: table or json")
	return cmd
}

// listRows returns the rows of a result holding a single list of objects, such as post.list.
func listRows(result map[string]any) ([]map[string]any, bool) {
	if len(result) != 1 {
		return nil, false
	}
	for _, v := range result {
		items, ok := v.([]any)
		if !ok {
			return nil, false
		}
		rows := make([]map[string]any, 0, len(items))
		for _, it := range items {
			row, ok := it.(map[string]any)
			if !ok {
				return nil, false
			}
			rows = append(rows, row)
		}
		return rows, true
	}
	return nil, false
}

func renderRows(w io.Writer, rows []map[string]any) {
	var cols []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := make(table.Row, 0, len(cols))
	for _, c := range cols {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, 0, len(cols))
		for _, c := range cols {
			v, ok := row[c]
			if !ok || v == nil {
				r = append(r, "")
				continue
			}
			r = append(r, fmt.Sprint(v))
		}
		t.AppendRow(r)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d rows", len(rows))})
	t.Render()
}

func parseInput(raw string) (*structpb.Struct, error) {
	var m map[string]any
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return structpb.NewStruct(m)
}

// call invokes name on conn, attaching token as a Bearer credential when non-empty.
func call(ctx context.Context, conn grpc.ClientConnInterface, token, name string, input *structpb.Struct) (*structpb.Struct, error) {
	domain, verb, ok := action.SplitName(name)
	if !ok {
		return nil, fmt.Errorf("invalid entry point name %q; want <domain>.<verb>", name)
	}
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, action.MethodFor(domain, verb), input, out); err != nil {
		return nil, err
	}
	return out, nil
}

// describeError renders field violations as a table and returns an error naming the status code.
func describeError(w io.Writer, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if vs := action.Violations(err); len(vs) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Field", "Problem"})
		for _, v := range vs {
			t.AppendRow(table.Row{v.Field, v.Description})
		}
		t.Render()
	}
	return errors.New(st.Code().String() + ": " + st.Message())
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
