package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prismbi/prism/internal/model"
)

func newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage RBAC roles",
		Long:  "Create roles, list them, and grant datasource access rules that define what API keys are allowed to do.",
	}

	cmd.AddCommand(newRoleListCmd())
	cmd.AddCommand(newRoleCreateCmd())
	cmd.AddCommand(newRoleGrantCmd())

	return cmd
}

// ---------- role list ----------

func newRoleListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRoleList(jsonOutput bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	roles, err := store.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}

	if jsonOutput {
		type roleRow struct {
			Name        string             `json:"name"`
			Description string             `json:"description"`
			Active      bool               `json:"active"`
			Access      []model.RoleAccess `json:"access"`
		}
		rows := make([]roleRow, len(roles))
		for i, r := range roles {
			rows[i] = roleRow{
				Name:        r.Name,
				Description: r.Description,
				Active:      r.IsActive,
				Access:      r.Access,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(roles) == 0 {
		fmt.Println("No roles configured. Use 'prism role create' to create one.")
		return nil
	}

	fmt.Printf("%-20s %-40s %-8s %-8s\n", "NAME", "DESCRIPTION", "ACTIVE", "RULES")
	fmt.Printf("%-20s %-40s %-8s %-8s\n", "----", "-----------", "------", "-----")
	for _, r := range roles {
		active := "yes"
		if !r.IsActive {
			active = "no"
		}
		desc := r.Description
		if len(desc) > 38 {
			desc = desc[:35] + "..."
		}
		fmt.Printf("%-20s %-40s %-8s %-8s\n", r.Name, desc, active, formatAccessSummary(r.Access))
	}

	return nil
}

// formatAccessSummary returns a short summary of access rules for display.
func formatAccessSummary(access []model.RoleAccess) string {
	if len(access) == 0 {
		return "none"
	}

	// Collect unique datasource UIDs
	uids := make(map[string]bool)
	for _, a := range access {
		if a.DatasourceUID != "" {
			uids[a.DatasourceUID] = true
		}
	}

	parts := make([]string, 0, len(uids))
	for uid := range uids {
		parts = append(parts, uid)
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%d rule(s)", len(access))
	}
	return fmt.Sprintf("%d rule(s): %s", len(access), strings.Join(parts, ", "))
}

// ---------- role create ----------

func newRoleCreateCmd() *cobra.Command {
	var (
		name        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new role",
		Example: `  prism role create --name readonly --description "Read-only access to all datasources"
  prism role create --name analyst --description "Query access"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleCreate(name, description)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Role name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Role description")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runRoleCreate(name, description string) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	role := &model.Role{
		Name:        name,
		Description: description,
		IsActive:    true,
	}

	if err := store.CreateRole(ctx, role); err != nil {
		return fmt.Errorf("create role: %w", err)
	}

	fmt.Printf("Created role %q (id=%d)\n", name, role.ID)
	if description != "" {
		fmt.Printf("  description: %s\n", description)
	}
	return nil
}

// ---------- role grant ----------

func newRoleGrantCmd() *cobra.Command {
	var (
		roleName        string
		datasourceUID   string
		component       string
		verbs           string
		allowRestricted bool
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a datasource access rule to a role",
		Long: `Add an access rule to a role. A rule binds a datasource (or "*" for all),
a component (data, query, values, metadata, or "*"), and a set of allowed
HTTP verbs. Existing rules on the role are kept.`,
		Example: `  prism role grant --role readonly --datasource "*" --component "*" --verbs get
  prism role grant --role analyst --datasource 3__postgres --component query --verbs get,post --allow-restricted`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleGrant(roleName, datasourceUID, component, verbs, allowRestricted)
		},
	}

	cmd.Flags().StringVar(&roleName, "role", "", "Role name (required)")
	cmd.Flags().StringVar(&datasourceUID, "datasource", "*", "Datasource UID, or \"*\" for all")
	cmd.Flags().StringVar(&component, "component", "*", "Component: data, query, values, metadata, or \"*\"")
	cmd.Flags().StringVar(&verbs, "verbs", "get", "Comma-separated verbs: get, post, put, patch, delete, or \"all\"")
	cmd.Flags().BoolVar(&allowRestricted, "allow-restricted", false, "Allow querying restricted metrics")
	cmd.MarkFlagRequired("role")

	return cmd
}

func runRoleGrant(roleName, datasourceUID, component, verbs string, allowRestricted bool) error {
	mask, err := parseVerbMask(verbs)
	if err != nil {
		return err
	}

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	role, err := store.GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("role %q not found", roleName)
	}

	access := append(role.Access, model.RoleAccess{
		RoleID:          role.ID,
		DatasourceUID:   datasourceUID,
		Component:       component,
		VerbMask:        mask,
		AllowRestricted: allowRestricted,
	})

	if err := store.SetRoleAccess(ctx, role.ID, access); err != nil {
		return fmt.Errorf("set role access: %w", err)
	}

	fmt.Printf("Granted %s on %s/%s to role %q", verbs, datasourceUID, component, roleName)
	if allowRestricted {
		fmt.Print(" (restricted metrics allowed)")
	}
	fmt.Println()
	return nil
}

// parseVerbMask converts a comma-separated verb list into a verb mask.
func parseVerbMask(verbs string) (int, error) {
	mask := 0
	for _, v := range strings.Split(verbs, ",") {
		switch strings.TrimSpace(strings.ToLower(v)) {
		case "get":
			mask |= model.VerbGet
		case "post":
			mask |= model.VerbPost
		case "put":
			mask |= model.VerbPut
		case "patch":
			mask |= model.VerbPatch
		case "delete":
			mask |= model.VerbDelete
		case "all", "*":
			mask |= model.VerbAll
		case "":
		default:
			return 0, fmt.Errorf("unknown verb %q (use get, post, put, patch, delete, or all)", v)
		}
	}
	if mask == 0 {
		return 0, fmt.Errorf("no verbs specified")
	}
	return mask, nil
}
