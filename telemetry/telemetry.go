// Package telemetry is a helper package that wraps some common statsd
// methods. It hides the datadog dependency so a future migration to another
// statsd client only needs to edit this single file.
package telemetry

import (
	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// EmitExtensionStat counts one extension operation (insert, remove) tagged
// with the extension's type name.
func EmitExtensionStat(op string, extType string) {
	err := Client().Incr("extensions."+op, []string{"type:" + extType}, 1)
	if err != nil {
		log.Logger.Warn().Msgf("failed to emit extension stat: %v", err)
	}
}

// EmitPoolCreated counts the first-time creation of a per-type slot pool.
func EmitPoolCreated(extType string) {
	err := Client().Incr("extensions.pool_created", []string{"type:" + extType}, 1)
	if err != nil {
		log.Logger.Warn().Msgf("failed to emit pool stat: %v", err)
	}
}

// Init replaces the default no-op client with one that reports to the given
// statsd address.
func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace("tracing"),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return err
	}
	// Success! replace the global client
	client = newClient
	return nil
}
