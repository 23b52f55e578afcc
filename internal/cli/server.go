package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqldeck/sqldeck/internal/engine"
)

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage registered servers",
	}
	cmd.AddCommand(newServerAddCommand())
	cmd.AddCommand(newServerListCommand())
	cmd.AddCommand(newServerRemoveCommand())
	cmd.AddCommand(newServerPingCommand())
	return cmd
}

func newServerAddCommand() *cobra.Command {
	var (
		host     string
		port     int
		database string
		user     string
		password string
		group    string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			srv, err := eng.AddServer(engine.AddServerInput{
				Name:     args[0],
				Host:     host,
				Port:     port,
				Database: database,
				Username: user,
				Password: password,
				Group:    group,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added server %s (%s)\n", srv.Name, srv.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "Server host")
	cmd.Flags().IntVar(&port, "port", 5432, "Server port")
	cmd.Flags().StringVarP(&database, "database", "d", "", "Default database (required)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (stored in the credential file)")
	cmd.Flags().StringVar(&group, "group", "", "Server group label")
	_ = cmd.MarkFlagRequired("database")

	return cmd
}

func newServerListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			servers, err := eng.Servers()
			if err != nil {
				return err
			}

			cols := []string{"id", "name", "host", "port", "database", "group", "last_connected"}
			rows := make([]map[string]any, 0, len(servers))
			for _, s := range servers {
				group := ""
				if s.GroupName != nil {
					group = *s.GroupName
				}
				last := ""
				if s.LastConnected != nil {
					last = time.UnixMilli(*s.LastConnected).Format(time.RFC3339)
				}
				rows = append(rows, map[string]any{
					"id": s.ID, "name": s.Name, "host": s.Host, "port": s.Port,
					"database": s.Database, "group": group, "last_connected": last,
				})
			}
			return renderRows(cmd.OutOrStdout(), cols, rows, cfg.Output)
		},
	}
}

func newServerRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <server-id>",
		Short: "Remove a server and its stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if err := eng.RemoveServer(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed server %s\n", args[0])
			return nil
		},
	}
}

func newServerPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping <server-id>",
		Short: "Test connectivity to a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			start := time.Now()
			if err := eng.TestConnection(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK (%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
