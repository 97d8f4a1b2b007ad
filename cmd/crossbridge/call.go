package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/artpar/crossbridge/core/schema"
)

var callCmd = &cobra.Command{
	Use:   "call <module> <operation> [args...]",
	Short: "Invoke a module operation from the command line",
	Long: `Load the configured modules, invoke one operation the way the host core
would and print its result together with any signals the call emitted.

Arguments are parsed according to the operation's parameter tags. Only
scalar parameters can be given on the command line; pass "null" for a
nullable parameter.

Examples:
  crossbridge call Diagnostics ping hello
  crossbridge call Diagnostics uptime`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	in, err := inspect(ctx)
	if err != nil {
		return err
	}

	moduleName, opName := args[0], args[1]
	m, ok := in.Registry.Get(moduleName)
	if !ok {
		printProblems(cmd.ErrOrStderr(), in.Registry.Report())
		return fmt.Errorf("module not loaded: %s", moduleName)
	}
	op, ok := m.Capabilities.Operation(opName)
	if !ok {
		return fmt.Errorf("%s has no operation %q (available: %v)", moduleName, opName, m.Capabilities.OperationNames())
	}

	values, err := parseArgs(op.Params, args[2:])
	if err != nil {
		return err
	}

	out, err := in.Host.Call(ctx, moduleName, opName, values...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if op.ReturnTag() == schema.TagVoid {
		fmt.Fprintln(w, "ok")
	} else {
		fmt.Fprintf(w, "%s (%s)\n", out.String(), out.Tag())
	}
	for _, d := range in.Host.Deliveries() {
		fmt.Fprintf(w, "  signal %s.%s%v\n", d.Owner, d.Signal, d.Args)
	}
	return nil
}

// parseArgs converts command-line text to values for params. Extra
// arguments are passed as strings so the arity check reports them.
func parseArgs(params []schema.Tag, raw []string) ([]schema.Value, error) {
	values := make([]schema.Value, len(raw))
	for i, s := range raw {
		if i >= len(params) {
			values[i] = schema.String(s)
			continue
		}
		v, err := parseArg(params[i], s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

func parseArg(tag schema.Tag, s string) (schema.Value, error) {
	switch tag.Kind() {
	case schema.KindNullable:
		if s == "null" {
			return schema.Null(tag.Elem()), nil
		}
		return parseArg(tag.Elem(), s)
	case schema.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.Bool(b), nil
	case schema.KindInt32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.Int32(int32(n)), nil
	case schema.KindInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.Int64(n), nil
	case schema.KindFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.Float32(float32(f)), nil
	case schema.KindFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return schema.Value{}, err
		}
		return schema.Float64(f), nil
	case schema.KindString:
		return schema.String(s), nil
	case schema.KindBytes:
		return schema.Bytes([]byte(s)), nil
	case schema.KindModule:
		return schema.ModuleRefValue(s), nil
	}
	return schema.Value{}, fmt.Errorf("%s parameters cannot be given on the command line", tag)
}
