package config

import "github.com/urfave/cli/v3"

// Server holds status server configuration
type Server struct {
	Addr string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Status server address, empty to disable",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("VAULT_SYNC_ADDR"),
		},
	}
}

// Enabled returns true if the status server should run
func (c *Server) Enabled() bool {
	return c.Addr != ""
}
