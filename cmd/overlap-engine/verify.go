// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/overlap-engine/internal/secrets"
	"github.com/pdiddy/overlap-engine/internal/serp"
	"github.com/pdiddy/overlap-engine/pkg/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the API credentials work",
	Long: `Verify makes one authenticated call against the search-data provider and
reports whether the configured credentials are accepted. A transient
failure is retried once before reporting an error.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().Duration("timeout", 0, "per-call HTTP timeout (default 30s)")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	loginFlag, _ := cmd.Flags().GetString("login")
	passwordFlag, _ := cmd.Flags().GetString("password")
	login, password, err := secrets.Credentials(loadedSecrets, loginFlag, passwordFlag)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = types.DefaultCallTimeout
	}
	httpCfg := types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent}
	client := serp.NewDataForSEO(&http.Client{Timeout: timeout}, login, password, httpCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	err = client.Verify(ctx)
	if err != nil && serp.Classify(err) != serp.ClassAuth {
		// Transient failure: one more attempt before giving up.
		time.Sleep(time.Second)
		err = client.Verify(ctx)
	}
	if err != nil {
		return fmt.Errorf("credential check failed (%s): %w", serp.Classify(err), err)
	}

	fmt.Fprintln(os.Stdout, "Credentials OK.")
	return nil
}
