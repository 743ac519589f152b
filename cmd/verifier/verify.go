package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/realfinder/verifier/src/api"
	"github.com/realfinder/verifier/src/verification/types"
)

var (
	verifySubject string
	verifyFile    string
	verifyJSON    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run one verification locally and print the decision.",
	Example: `  verifier verify --subject listing --file listing.json
  cat broker.json | verifier verify --subject broker --json`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifySubject, "subject", "", "listing|broker|property")
	verifyCmd.Flags().StringVar(&verifyFile, "file", "-", "request body file, - for stdin")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print the decision as JSON")
	_ = verifyCmd.MarkFlagRequired("subject")
}

func runVerify(cmd *cobra.Command, _ []string) error {
	subject, ok := types.ParseSubjectType(verifySubject)
	if !ok {
		return fmt.Errorf("unknown subject %q: want listing, broker or property", verifySubject)
	}
	body, err := readInput(cmd.InOrStdin(), verifyFile)
	if err != nil {
		return err
	}
	req, err := api.DecodeRequest(subject, body)
	if err != nil {
		return fmt.Errorf("decode %s: %w", verifyFile, err)
	}

	ctx := cmd.Context()
	rt, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	s, err := buildStack(ctx, rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer s.close()

	d, err := s.orchestrator.Verify(ctx, req)
	if err != nil {
		return err
	}
	if verifyJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d.Wire())
	}
	return writeDecision(cmd.OutOrStdout(), d)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return b, nil
}
