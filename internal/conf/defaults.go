// defaults.go: viper defaults for every setting.
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "ParkPulse")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10485760)

	viper.SetDefault("upstream.baseurl", "https://queue-times.com")
	viper.SetDefault("upstream.useragent", "ParkPulse https://github.com/tphakala/parkpulse")
	viper.SetDefault("upstream.timeout", 10*time.Second)
	viper.SetDefault("upstream.ratelimit", 5.0)
	viper.SetDefault("upstream.burst", 5)
	viper.SetDefault("upstream.maxretries", 3)
	viper.SetDefault("upstream.retrydelay", 2*time.Second)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.slowthreshold", 500*time.Millisecond)
	viper.SetDefault("database.sqlite.path", "parkpulse.db")
	viper.SetDefault("database.mysql.username", "parkpulse")
	viper.SetDefault("database.mysql.password", "secret")
	viper.SetDefault("database.mysql.database", "parkpulse")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.postgres.username", "parkpulse")
	viper.SetDefault("database.postgres.password", "secret")
	viper.SetDefault("database.postgres.database", "parkpulse")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", "5432")
	viper.SetDefault("database.postgres.sslmode", "disable")

	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.defaultttl", 10*time.Minute)
	viper.SetDefault("cache.cleanupinterval", 5*time.Minute)
	viper.SetDefault("cache.badger.path", "cache")
	viper.SetDefault("cache.badger.inmemory", false)
	viper.SetDefault("cache.nats.url", "nats://localhost:4222")
	viper.SetDefault("cache.nats.bucket", "parkpulse_cache")

	viper.SetDefault("catalog.interval", 24*time.Hour)
	viper.SetDefault("catalog.runonstart", true)
	viper.SetDefault("catalog.batchsize", 200)

	viper.SetDefault("sampler.interval", 5*time.Minute)
	viper.SetDefault("sampler.runonstart", true)
	viper.SetDefault("sampler.batchsize", 10)
	viper.SetDefault("sampler.batchdelay", time.Second)
	viper.SetDefault("sampler.pagesize", 100)
	viper.SetDefault("sampler.latestttl", 10*time.Minute)

	viper.SetDefault("crowd.windowdays", 730)
	viper.SetDefault("crowd.percentile", 95.0)
	viper.SetDefault("crowd.minbuckets", 10)
	viper.SetDefault("crowd.cachettl", 4*time.Hour)
	viper.SetDefault("crowd.timeout", 5*time.Second)

	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
