package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/passvault/internal/flagx"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It is an intermediate DTO used only for reading JSON
// configuration files; fields that are present are copied into the runtime
// Config, absent fields leave the current value in place.
type JsonConfig struct {
	EndpointAddr      string `json:"endpoint_addr"`
	DBUser            string `json:"db_user"`
	DBHost            string `json:"db_host"`
	DBPort            string `json:"db_port"`
	DBName            string `json:"db_name"`
	BcryptCost        int    `json:"bcrypt_cost"`
	TOTPIssuer        string `json:"totp_issuer"`
	SecretsRuntimeDir string `json:"secrets_runtime_dir"`
	SecretsLocalDir   string `json:"secrets_local_dir"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DBUser != "" {
		config.DBUser = c.DBUser
	}
	if c.DBHost != "" {
		config.DBHost = c.DBHost
	}
	if c.DBPort != "" {
		config.DBPort = c.DBPort
	}
	if c.DBName != "" {
		config.DBName = c.DBName
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.TOTPIssuer != "" {
		config.TOTPIssuer = c.TOTPIssuer
	}
	if c.SecretsRuntimeDir != "" {
		config.SecretsRuntimeDir = c.SecretsRuntimeDir
	}
	if c.SecretsLocalDir != "" {
		config.SecretsLocalDir = c.SecretsLocalDir
	}
}
