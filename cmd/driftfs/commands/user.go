package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/cli/output"
	"github.com/driftfs/driftfs/internal/cli/prompt"
	"github.com/driftfs/driftfs/pkg/config"
	"github.com/driftfs/driftfs/pkg/vfs/models"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

var (
	userAddPassword string
	userDeleteForce bool
	userListFormat  string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long: `Manage DriftFS users directly against the metadata store.

These commands operate on the configured database without going through the
API server, so they work even when the server is not running. Creating a user
also creates the root directory of their filesystem.

Examples:
  # Add a user (prompts for password)
  driftfs user add alice

  # List all users
  driftfs user list

  # Change a user's password
  driftfs user passwd alice

  # Delete a user and their filesystem
  driftfs user delete alice --force`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a new user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"remove"},
	Short:   "Delete a user and their filesystem",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

var userPasswdCmd = &cobra.Command{
	Use:     "passwd <username>",
	Aliases: []string{"password"},
	Short:   "Change a user's password",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserPasswd,
}

func init() {
	userAddCmd.Flags().StringVarP(&userAddPassword, "password", "p", "", "Password (prompts if not provided)")
	userDeleteCmd.Flags().BoolVar(&userDeleteForce, "force", false, "Skip confirmation prompt")
	userListCmd.Flags().StringVarP(&userListFormat, "output", "o", "table", "Output format (table, json)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userPasswdCmd)
}

// openStore loads configuration and opens the metadata store for a one-shot
// CLI operation. The caller owns the returned store and must close it.
func openStore() (*store.GORMStore, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return st, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	password := userAddPassword
	if password == "" {
		var err error
		password, err = prompt.NewPassword()
		if err != nil {
			if prompt.IsAborted(err) {
				return nil
			}
			return err
		}
	}
	if err := models.ValidatePassword(password); err != nil {
		return err
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	user := &models.User{Username: username, PasswordHash: hash}
	if err := st.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	printer := output.DefaultPrinter()
	printer.Success(fmt.Sprintf("User %q created (ID: %s)", username, user.ID))
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userListFormat)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
	if format == output.FormatJSON {
		return printer.Print(users)
	}

	if len(users) == 0 {
		printer.Println("No users found")
		return nil
	}

	table := output.NewTableData("USERNAME", "ID", "CREATED")
	for _, u := range users {
		table.AddRow(u.Username, u.ID, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return printer.Print(table)
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUser(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete user %q and their entire filesystem?", username),
		userDeleteForce,
	)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	if !confirmed {
		return nil
	}

	// Release the blob references held by the user's files before the node
	// rows go away. Blobs whose reference count drops to zero become orphans
	// and are reclaimed by the reaper on its next sweep.
	nodes, err := st.Subtree(ctx, user.ID, "/")
	if err != nil {
		return fmt.Errorf("failed to enumerate user files: %w", err)
	}
	for _, node := range nodes {
		if node.IsDirectory || node.BlobID == nil {
			continue
		}
		if _, err := st.ReleaseBlob(ctx, *node.BlobID); err != nil {
			return fmt.Errorf("failed to release blob for %s: %w", node.Path, err)
		}
	}

	if err := st.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	printer := output.DefaultPrinter()
	printer.Success(fmt.Sprintf("User %q deleted", username))
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	username := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUser(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	password, err := prompt.PasswordWithConfirmation("New password", "Confirm password", models.MinPasswordLength)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	if err := models.ValidatePassword(password); err != nil {
		return err
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := st.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	printer := output.DefaultPrinter()
	printer.Success(fmt.Sprintf("Password changed for user %q", username))
	return nil
}
