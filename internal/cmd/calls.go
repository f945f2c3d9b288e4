package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cheyinl/zuora-soap/soap"
	"github.com/cheyinl/zuora-soap/zuora"
)

// itemResult is the printed form of a per-item create or delete outcome.
type itemResult struct {
	ID      string   `yaml:"id,omitempty"`
	Success bool     `yaml:"success"`
	Errors  []string `yaml:"errors,omitempty"`
}

func newItemResult(id string, success bool, errs []zuora.ResultError) itemResult {
	r := itemResult{ID: id, Success: success}
	for _, e := range errs {
		r.Errors = append(r.Errors, e.Code+": "+e.Message)
	}
	return r
}

func failedCount(results []itemResult) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials by logging in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := client.Login(cmd.Context()); err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), map[string]string{
				"endpoint":   client.Endpoint(),
				"expires_at": client.Session().ExpiresAt().Format(time.RFC3339),
			})
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user and tenant behind the credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			info, err := client.GetUserInfo(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), map[string]string{
				"tenant_id":   info.TenantID,
				"tenant_name": info.TenantName,
				"user_id":     info.UserID,
				"username":    info.Username,
				"email":       info.UserEmail,
				"full_name":   info.UserFullName,
			})
		},
	}
}

func newQueryCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "query ZOQL",
		Short: "Run a ZOQL query and print the records",
		Example: `  zuoractl query "select Id, Name from Product"
  zuoractl query --all "select Id, AccountNumber from Account"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			var records []*soap.Record
			if all {
				records, err = client.QueryAll(cmd.Context(), args[0])
			} else {
				var page *zuora.QueryResult
				if page, err = client.Query(cmd.Context(), args[0]); err == nil {
					records = page.Records
					if !page.Done {
						a.logger.Warn().Int("size", page.Size).Msg("more records available, use --all")
					}
				}
			}
			if err != nil {
				return err
			}
			out := make([]map[string]interface{}, len(records))
			for i, r := range records {
				out[i] = r.Map()
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "follow query locators until every record is read")
	return cmd
}

func newCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "create TYPE FIELD=VALUE...",
		Short:   "Create one object",
		Example: `  zuoractl create Product Name="Gold plan" EffectiveStartDate=2024-01-01 EffectiveEndDate=2034-01-01`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			obj, err := client.Instantiate(args[0])
			if err != nil {
				return err
			}
			for _, arg := range args[1:] {
				name, value, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid field %q, want NAME=VALUE", arg)
				}
				obj.Set(name, value)
			}
			saved, err := client.Create(cmd.Context(), obj)
			if err != nil {
				return err
			}
			results := make([]itemResult, len(saved))
			for i, r := range saved {
				results[i] = newItemResult(r.ID, r.Success, r.Errors)
			}
			if err := writeYAML(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if n := failedCount(results); n > 0 {
				return fmt.Errorf("%d of %d objects not created", n, len(results))
			}
			return nil
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TYPE ID...",
		Short: "Delete objects by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			deleted, err := client.Delete(cmd.Context(), args[0], args[1:]...)
			if err != nil {
				return err
			}
			results := make([]itemResult, len(deleted))
			for i, r := range deleted {
				results[i] = newItemResult(r.ID, r.Success, r.Errors)
			}
			if err := writeYAML(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if n := failedCount(results); n > 0 {
				return fmt.Errorf("%d of %d objects not deleted", n, len(results))
			}
			return nil
		},
	}
}

func newTypesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the object types and operations declared by the WSDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			def := client.Definition()
			return writeYAML(cmd.OutOrStdout(), map[string]interface{}{
				"endpoint":   def.Endpoint,
				"operations": def.Operations,
				"types":      def.Types(),
			})
		},
	}
}
