package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	amw "github.com/corvusHold/changenotify/internal/auth/middleware"
	"github.com/corvusHold/changenotify/internal/changes"
	cdomain "github.com/corvusHold/changenotify/internal/customers/domain"
	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
	nsvc "github.com/corvusHold/changenotify/internal/notify/service"
)

// Notification settings commands
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Notification settings",
	Long:  "View and update the admin recipient, mail subjects and email provider",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show notification settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := newClient().GetNotifyConfig()
		if err != nil {
			return err
		}
		return formatOutput(cmd.OutOrStdout(), outputFmt, cfg)
	},
}

var settingsPatch ndomain.Config
var settingsProvider string

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update notification settings",
	Long:  "Update the given notification settings; omitted flags keep their current value",
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := NotifyConfig{
			AdminTo:         settingsPatch.AdminTo,
			AdminSubject:    settingsPatch.AdminSubject,
			CustomerSubject: settingsPatch.CustomerSubject,
			EmailProvider:   settingsProvider,
		}
		if patch == (NotifyConfig{}) {
			return fmt.Errorf("nothing to update")
		}
		if err := newClient().SetNotifyConfig(patch); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Notification settings updated")
		return nil
	},
}

func init() {
	settingsSetCmd.Flags().StringVar(&settingsPatch.AdminTo, "admin-to", "", "admin recipient address")
	settingsSetCmd.Flags().StringVar(&settingsPatch.AdminSubject, "admin-subject", "", "admin mail subject")
	settingsSetCmd.Flags().StringVar(&settingsPatch.CustomerSubject, "customer-subject", "", "customer mail subject")
	settingsSetCmd.Flags().StringVar(&settingsProvider, "provider", "", "email provider (smtp, brevo, nop)")
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

// Customer commands
var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Customer profile commands",
}

var customerGetCmd = &cobra.Command{
	Use:   "get [customer-id]",
	Short: "Show a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid customer id %q", args[0])
		}
		c, err := newClient().GetCustomer(id)
		if err != nil {
			return err
		}
		return formatOutput(cmd.OutOrStdout(), outputFmt, c)
	},
}

var customerSetFields []string

var customerUpdateCmd = &cobra.Command{
	Use:   "update [customer-id] --set field=value",
	Short: "Update profile fields of a customer",
	Long:  "Update profile fields of a customer. A change to a watched field sends the change notifications.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid customer id %q", args[0])
		}
		fields, err := parseAssignments(customerSetFields)
		if err != nil {
			return err
		}
		c, err := newClient().UpdateCustomer(id, fields)
		if err != nil {
			return err
		}
		return formatOutput(cmd.OutOrStdout(), outputFmt, c)
	},
}

var customerCreateCmd = &cobra.Command{
	Use:   "create --set email=... [--set field=value]",
	Short: "Create a customer (never notifies)",
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseAssignments(customerSetFields)
		if err != nil {
			return err
		}
		c, err := newClient().CreateCustomer(fields)
		if err != nil {
			return err
		}
		return formatOutput(cmd.OutOrStdout(), outputFmt, c)
	},
}

func init() {
	customerCreateCmd.Flags().StringArrayVar(&customerSetFields, "set", nil, "field=value to set (repeatable)")
	customerCmd.AddCommand(customerCreateCmd)
	customerUpdateCmd.Flags().StringArrayVar(&customerSetFields, "set", nil, "field=value to set (repeatable)")
	customerCmd.AddCommand(customerGetCmd)
	customerCmd.AddCommand(customerUpdateCmd)
}

func parseAssignments(in []string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("at least one --set field=value is required")
	}
	out := make(map[string]string, len(in))
	for _, a := range in {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid assignment %q, want field=value", a)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// Offline commands
var labelsFile string

var diffCmd = &cobra.Command{
	Use:   "diff [old.json] [new.json]",
	Short: "Show the watched-field changes between two customer records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiff(cmd.OutOrStdout(), args[0], args[1], labelsFile, outputFmt)
	},
}

var (
	previewRole      string
	previewTemplates string
	previewShopEmail string
	previewShopName  string
)

var previewCmd = &cobra.Command{
	Use:   "preview [old.json] [new.json]",
	Short: "Render the change mail for two customer records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview(cmd.OutOrStdout(), args[0], args[1], previewOptions{
			role:      ndomain.Role(previewRole),
			templates: previewTemplates,
			labels:    labelsFile,
			shop:      ndomain.Shop{FromAddress: previewShopEmail, FromName: previewShopName},
		})
	},
}

func init() {
	diffCmd.Flags().StringVar(&labelsFile, "labels", "", "YAML field label table")
	previewCmd.Flags().StringVar(&labelsFile, "labels", "", "YAML field label table")
	previewCmd.Flags().StringVar(&previewRole, "role", string(ndomain.RoleAdmin), "recipient role (admin, customer)")
	previewCmd.Flags().StringVar(&previewTemplates, "templates", "", "template directory (default: built-in templates)")
	previewCmd.Flags().StringVar(&previewShopEmail, "shop-email", "shop@example.com", "shop sender address")
	previewCmd.Flags().StringVar(&previewShopName, "shop-name", "Example Shop", "shop name")
}

func loadCustomer(path string) (cdomain.Customer, error) {
	var c cdomain.Customer
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("decode %s: %w", path, err)
	}
	return c, nil
}

func diffFiles(oldPath, newPath, labels string) (cdomain.Customer, *changes.Diff, error) {
	before, err := loadCustomer(oldPath)
	if err != nil {
		return cdomain.Customer{}, nil, err
	}
	after, err := loadCustomer(newPath)
	if err != nil {
		return cdomain.Customer{}, nil, err
	}
	var opts []changes.Option
	if labels != "" {
		t, err := changes.LoadLabels(labels)
		if err != nil {
			return cdomain.Customer{}, nil, err
		}
		opts = append(opts, changes.WithLabels(t))
	}
	b, err := changes.NewBuilder(cdomain.WatchedFields(), opts...)
	if err != nil {
		return cdomain.Customer{}, nil, err
	}
	return after, b.Build(cdomain.ChangeSetBetween(before, after)), nil
}

type changeRow struct {
	Field string `json:"field" yaml:"field"`
	Label string `json:"label" yaml:"label"`
	Old   string `json:"old" yaml:"old"`
	New   string `json:"new" yaml:"new"`
}

func runDiff(w io.Writer, oldPath, newPath, labels, format string) error {
	_, diff, err := diffFiles(oldPath, newPath, labels)
	if err != nil {
		return err
	}
	rows := make([]changeRow, 0, diff.Len())
	for _, c := range diff.Changes() {
		rows = append(rows, changeRow{Field: c.Field, Label: c.Label, Old: c.OldFormatted, New: c.NewFormatted})
	}
	if format == "json" || format == "yaml" {
		return formatOutput(w, format, rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no watched field changed")
		return err
	}
	for _, r := range rows {
		fmt.Fprintf(w, "- %s: %q -> %q\n", r.Label, r.Old, r.New)
	}
	return nil
}

type previewOptions struct {
	role      ndomain.Role
	templates string
	labels    string
	shop      ndomain.Shop
}

func runPreview(w io.Writer, oldPath, newPath string, o previewOptions) error {
	after, diff, err := diffFiles(oldPath, newPath, o.labels)
	if err != nil {
		return err
	}
	if diff.IsEmpty() {
		_, err := fmt.Fprintln(w, "no watched field changed; no mail would be sent")
		return err
	}
	var id string
	switch o.role {
	case ndomain.RoleAdmin:
		id = ndomain.TemplateAdmin
	case ndomain.RoleCustomer:
		id = ndomain.TemplateCustomer
	default:
		return fmt.Errorf("unknown role %q", o.role)
	}
	r, err := nsvc.NewTemplateRenderer(o.templates, zerolog.Nop())
	if err != nil {
		return err
	}
	body, err := r.Render(id, ndomain.RenderContext{Subject: &after, Changes: diff.Changes(), Shop: o.shop})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, body)
	return err
}

// Token command
var (
	tokenRole       string
	tokenSubject    string
	tokenCustomerID int64
	tokenTTL        time.Duration
	tokenIssuer     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token signed with NOTIFY_SIGNING_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		key := viper.GetString("signing_key")
		if key == "" {
			return fmt.Errorf("signing key not set (NOTIFY_SIGNING_KEY or signing_key in config)")
		}
		if tokenRole == amw.RoleCustomer && tokenCustomerID <= 0 {
			return fmt.Errorf("--customer-id is required for customer tokens")
		}
		tok, err := amw.Sign(key, tokenIssuer, tokenSubject, tokenRole, tokenCustomerID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", amw.RoleAdmin, "token role (admin, customer)")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "notify-cli", "token subject")
	tokenCmd.Flags().Int64Var(&tokenCustomerID, "customer-id", 0, "customer id for customer tokens")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "", "token issuer")
	tokenCmd.Flags().String("signing-key", "", "HS256 signing key")
	_ = viper.BindPFlag("signing_key", tokenCmd.Flags().Lookup("signing-key"))
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check API health",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newClient().CheckHealth()
		if err != nil {
			return err
		}
		return formatOutput(cmd.OutOrStdout(), outputFmt, h)
	},
}
