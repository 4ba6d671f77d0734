package main

import (
	"errors"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"go-identity/internal/model"
	"go-identity/internal/service"
)

func newCreateUserCmd() *cobra.Command {
	var (
		in        service.NewAccount
		superuser bool
	)

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create an active account",
		Long: `Create an active account. The password is read from the
IDENTITY_NEW_PASSWORD environment variable when --password is not given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if in.Password == "" {
				in.Password = lookupEnv("IDENTITY_NEW_PASSWORD")
			}
			in.IsSuperuser = superuser

			hasher, err := service.NewPasswordHasher(cfg.PasswordHasher)
			if err != nil {
				return err
			}
			user, err := service.BuildAccount(hasher, in, time.Now().UTC())
			if err != nil {
				return err
			}

			stores, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			if err := stores.Users.Create(cmd.Context(), user); err != nil {
				if errors.Is(err, model.ErrUserAlreadyExists) {
					return oops.Code("USER_ALREADY_EXISTS").Errorf("a user with email %s already exists", user.Email)
				}
				return err
			}

			cmd.Printf("Created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().BoolVar(&in.IsStaff, "staff", false, "grant the staff role")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant the superuser role (implies --staff)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Maintain the direction, management and coordination tree",
	}
	cmd.AddCommand(newOrgAddCmd())
	cmd.AddCommand(newOrgRemoveCmd())
	return cmd
}

func newOrgAddCmd() *cobra.Command {
	var parent int64

	cmd := &cobra.Command{
		Use:   "add <direction|management|coordination> <name>",
		Short: "Add an organizational node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, ok := model.ParseOrgLevel(args[0])
			if !ok {
				return oops.Code("ORG_INVALID_LEVEL").Errorf("unknown org level %q", args[0])
			}

			cfg, _, err := setup()
			if err != nil {
				return err
			}
			stores, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			var parentID *int64
			if parent > 0 {
				parentID = &parent
			}
			node, err := stores.Orgs.CreateNode(cmd.Context(), level, args[1], parentID)
			if err != nil {
				return err
			}

			cmd.Printf("Created %s %q with id %d\n", node.Level, node.Name, node.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&parent, "parent", 0, "parent node id (required for management and coordination)")
	return cmd
}

func newOrgRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <direction|management|coordination> <id>",
		Short: "Remove a node and its descendants; users placed there are detached",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, ok := model.ParseOrgLevel(args[0])
			if !ok {
				return oops.Code("ORG_INVALID_LEVEL").Errorf("unknown org level %q", args[0])
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return oops.Code("ORG_INVALID_ID").Wrapf(err, "invalid id %q", args[1])
			}

			cfg, _, err := setup()
			if err != nil {
				return err
			}
			stores, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			if err := stores.Orgs.DeleteNode(cmd.Context(), level, id); err != nil {
				return err
			}

			cmd.Printf("Removed %s %d\n", level, id)
			return nil
		},
	}
}
