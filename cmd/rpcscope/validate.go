package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/rpcscope/internal/jsonrpc"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errNotCompliant = errors.New("message is not JSON-RPC 2.0 compliant")

func validateCmd() *cobra.Command {
	var (
		role  string
		frame string
	)
	cmd := &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Check a JSON-RPC message against the protocol",
		Long: `Validate reads one JSON-RPC message (or batch) from a file, stdin ("-")
or --frame and reports structural errors and warnings. The role is
inferred from the message when --role is not given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := frame
			if text == "" {
				src := "-"
				if len(args) == 1 {
					src = args[0]
				}
				data, err := readSource(cmd.InOrStdin(), src)
				if err != nil {
					return err
				}
				text = string(data)
			}
			return runValidate(cmd.OutOrStdout(), text, role)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "request or response (inferred when empty)")
	cmd.Flags().StringVar(&frame, "frame", "", "message text to validate")
	return cmd
}

func readSource(stdin io.Reader, src string) ([]byte, error) {
	if src == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(src)
}

func runValidate(w io.Writer, text, role string) error {
	payload, err := jsonrpc.DecodeString(strings.TrimSpace(text))
	if err != nil {
		fmt.Fprintf(w, "%s parse error: %v\n", color.RedString("invalid"), err)
		return errNotCompliant
	}
	r, err := resolveRole(payload, role)
	if err != nil {
		return err
	}
	res := jsonrpc.Validate(payload, r)
	if res.IsValid {
		fmt.Fprintf(w, "%s (%s)\n", color.GreenString("valid"), r)
	} else {
		fmt.Fprintf(w, "%s (%s)\n", color.RedString("invalid"), r)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  error:   %s\n", e)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	if !res.IsValid {
		return errNotCompliant
	}
	return nil
}

func resolveRole(payload any, role string) (jsonrpc.Role, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "request", "req":
		return jsonrpc.RoleRequest, nil
	case "response", "resp":
		return jsonrpc.RoleResponse, nil
	case "":
	default:
		return "", fmt.Errorf("unknown role %q (expected request or response)", role)
	}
	probe := payload
	if items, ok := payload.([]any); ok && len(items) > 0 {
		probe = items[0]
	}
	if jsonrpc.HasField(probe, "method") {
		return jsonrpc.RoleRequest, nil
	}
	return jsonrpc.RoleResponse, nil
}
