package config

import (
	"fmt"
	"strconv"

	zerr "github.com/forgehost/lfs-gateway/errors"
)

// Validate checks conf for internal consistency. It never mutates conf.
func Validate(conf *Config) error {
	if conf.Storage.RootDirectory == "" {
		return fmt.Errorf("%w: storage.rootDirectory is required", zerr.ErrBadConfig)
	}

	if len(conf.Repositories) == 0 {
		return fmt.Errorf("%w: at least one repository must be configured", zerr.ErrBadConfig)
	}

	if conf.Token.TTL <= 0 {
		return fmt.Errorf("%w: token.ttl must be positive", zerr.ErrBadConfig)
	}

	if conf.HTTP.Port != "" {
		port, err := strconv.Atoi(conf.HTTP.Port)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("%w: invalid http port %q", zerr.ErrBadConfig, conf.HTTP.Port)
		}
	}

	if conf.HTTP.TLS != nil {
		if conf.HTTP.TLS.Cert == "" || conf.HTTP.TLS.Key == "" {
			return fmt.Errorf("%w: tls requires both cert and key", zerr.ErrBadConfig)
		}
	}

	if conf.Oracle.BinaryPath == "" {
		return fmt.Errorf("%w: oracle.binaryPath is required", zerr.ErrBadConfig)
	}

	return nil
}
