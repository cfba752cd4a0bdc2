package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesDir    string
	Port          string
	WorkerCount   int
	AlertSchedule string
	SourcePacing  time.Duration
	CheapestLimit int
	APIAccessKey  string

	// Alert event publishing
	RedisAddr   string
	RedisStream string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
