package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/identity"
)

type invokeFlags struct {
	contract string
	caller   string
	value    uint64
	fund     uint64
	input    string
}

func newInvokeCmd(a *app) *cobra.Command {
	f := &invokeFlags{}

	cmd := &cobra.Command{
		Use:   "invoke <entry-point>",
		Short: "Run one transaction and print its result",
		Long: `invoke deploys the contract (restoring its latest snapshot when the
store is persistent), runs the named entry point as a single top-level
transaction and prints the result with its receipt as JSON.

Wallets are not persisted; use --fund to give the caller a balance
before the call.`,
		Example: `  testbankd invoke Deposit --caller 0x01 --fund 100 --value 100 --input '{"amount":100}'
  testbankd invoke func03 --contract HM25 --input '{"input3":0}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.contract, "contract", testbank.ContractName, "contract to invoke")
	flags.StringVar(&f.caller, "caller", "", "caller identity as hex (default: null identity)")
	flags.Uint64Var(&f.value, "value", 0, "value attached to the call")
	flags.Uint64Var(&f.fund, "fund", 0, "credit the caller's wallet before the call")
	flags.StringVar(&f.input, "input", "", "entry point input as JSON")
	return cmd
}

func (a *app) invoke(cmd *cobra.Command, entryPoint string, f *invokeFlags) error {
	ctx := cmd.Context()

	caller := identity.Null
	if f.caller != "" {
		parsed, err := parseIdentity(f.caller)
		if err != nil {
			return err
		}
		caller = parsed
	}

	var input json.RawMessage
	if f.input != "" {
		if !json.Valid([]byte(f.input)) {
			return fmt.Errorf("%w: --input is not valid JSON", host.ErrInvalidInput)
		}
		input = json.RawMessage(f.input)
	}

	c, err := a.contractFor(f.contract)
	if err != nil {
		return err
	}
	h, err := a.newHost()
	if err != nil {
		return err
	}
	if err := h.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := h.Stop(); err != nil {
			a.logger.Error("failed to stop host", "error", err)
		}
	}()

	if _, err := h.Deploy(ctx, c); err != nil {
		return err
	}
	if f.fund > 0 {
		if err := h.Fund(caller, f.fund); err != nil {
			return err
		}
	}

	res, invokeErr := h.Invoke(ctx, host.Call{
		Contract: f.contract,
		Name:     entryPoint,
		Caller:   caller,
		Value:    f.value,
		Input:    input,
	})
	if res != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return invokeErr
}

// parseIdentity accepts the full 64 hex character form or a short hex
// value, which is left-padded with zeros.
func parseIdentity(s string) (identity.Identity, error) {
	if id, err := identity.Parse(s); err == nil {
		return id, nil
	}
	hex := s
	if len(hex) > 2 && (hex[:2] == "0x" || hex[:2] == "0X") {
		hex = hex[2:]
	}
	if len(hex) == 0 || len(hex) > 64 {
		return identity.Null, fmt.Errorf("%w: identity %q", host.ErrInvalidInput, s)
	}
	id, err := identity.Parse(strings.Repeat("0", 64-len(hex)) + hex)
	if err != nil {
		return identity.Null, fmt.Errorf("%w: identity %q", host.ErrInvalidInput, s)
	}
	return id, nil
}
