package provider

import (
	"agentrelay/config"

	"github.com/rs/zerolog"
)

func logger() *zerolog.Logger {
	return config.Logger("provider")
}
