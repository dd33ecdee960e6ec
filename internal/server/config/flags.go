package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/passvault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-u string   PostgreSQL user
//	-o string   PostgreSQL host
//	-p string   PostgreSQL port
//	-n string   PostgreSQL database name
//	-b int      bcrypt cost
//	-i string   TOTP issuer label
//	-r string   runtime secrets directory
//	-l string   local secrets directory
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-u", "-o", "-p", "-n", "-b", "-i", "-r", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DBUser, "u", config.DBUser, "database user")
	fs.StringVar(&config.DBHost, "o", config.DBHost, "database host")
	fs.StringVar(&config.DBPort, "p", config.DBPort, "database port")
	fs.StringVar(&config.DBName, "n", config.DBName, "database name")
	fs.IntVar(&config.BcryptCost, "b", config.BcryptCost, "bcrypt cost")
	fs.StringVar(&config.TOTPIssuer, "i", config.TOTPIssuer, "TOTP issuer label")
	fs.StringVar(&config.SecretsRuntimeDir, "r", config.SecretsRuntimeDir, "runtime secrets directory")
	fs.StringVar(&config.SecretsLocalDir, "l", config.SecretsLocalDir, "local secrets directory")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
