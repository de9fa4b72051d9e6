package projects

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/laforge-app/laforge/cmd/util"
	"github.com/laforge-app/laforge/pkg/config"
	"github.com/laforge-app/laforge/pkg/errors"
	"github.com/laforge-app/laforge/pkg/transfer"
)

// New creates a new `projects` command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage the registered projects.",
	}
	cmd.AddCommand(newListCommand(), newAddCommand(), newRemoveCommand(),
		newCredentialCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered projects.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := list(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func list() error {
	store, err := config.NewProjectStore()
	if err != nil {
		return errors.WithContext(err, "open project registry")
	}

	projects, err := store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHOST\tLAST SYNC")
	for _, project := range projects {
		lastSync := "never"
		if project.LastSync != nil {
			lastSync = project.LastSync.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			project.ID, project.Name, project.Remote.Host, lastSync)
	}
	return w.Flush()
}

func newAddCommand() *cobra.Command {
	var project config.Project
	var password string
	var protocol string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new project.",
		Run: func(_ *cobra.Command, _ []string) {
			project.Remote.Protocol = transfer.Protocol(protocol)
			if err := add(project, password); err != nil {
				util.HandleFatalError(err)
			}
			fmt.Printf("Registered project %s (%s).\n", project.Name, project.ID)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&project.ID, "id", uuid.New().String(),
		"the project id (defaults to a generated id)")
	flags.StringVar(&project.Name, "name", "", "the project name")
	flags.StringVar(&project.Client, "client", "", "the client the site belongs to")
	flags.StringVar(&project.LocalPath, "path", "", "the local site directory")
	flags.StringVar(&project.Remote.Host, "host", "", "the remote host")
	flags.IntVar(&project.Remote.Port, "port", 21, "the remote port")
	flags.StringVar(&project.Remote.Username, "username", "", "the remote username")
	flags.StringVar(&project.Remote.RemotePath, "remote-path", "/",
		"the directory on the remote host to publish into")
	flags.StringVar(&protocol, "protocol", string(transfer.ProtocolFTP),
		"the transfer protocol (ftp, ftps or sftp)")
	flags.BoolVar(&project.Remote.Passive, "passive", true,
		"use passive mode for FTP transfers")
	flags.StringVar(&password, "password", "",
		"the remote password (stored in the credential store)")
	return cmd
}

func add(project config.Project, password string) error {
	if project.Name == "" || project.LocalPath == "" || project.Remote.Host == "" {
		return errors.NewFriendlyError(
			"The --name, --path and --host flags are required.")
	}

	store, err := config.NewProjectStore()
	if err != nil {
		return errors.WithContext(err, "open project registry")
	}
	if err := store.Save(project); err != nil {
		return errors.WithContext(err, "save project")
	}

	if password == "" {
		return nil
	}
	creds, err := config.NewCredentialStore()
	if err != nil {
		return errors.WithContext(err, "open credential store")
	}
	return creds.Set(project.ID, password)
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove PROJECT_ID",
		Short: "Remove a registered project.",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := remove(args[0]); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func remove(id string) error {
	store, err := config.NewProjectStore()
	if err != nil {
		return errors.WithContext(err, "open project registry")
	}
	if err := store.Delete(id); err != nil {
		return err
	}

	creds, err := config.NewCredentialStore()
	if err != nil {
		return errors.WithContext(err, "open credential store")
	}
	return creds.Delete(id)
}

func newCredentialCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "credential PROJECT_ID",
		Short: "Store the remote password for a project.",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := setCredential(args[0], password); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "the remote password")
	return cmd
}

func setCredential(id, password string) error {
	store, err := config.NewProjectStore()
	if err != nil {
		return errors.WithContext(err, "open project registry")
	}
	if _, err := store.Get(id); err != nil {
		return err
	}

	creds, err := config.NewCredentialStore()
	if err != nil {
		return errors.WithContext(err, "open credential store")
	}
	return creds.Set(id, password)
}
