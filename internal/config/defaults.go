package config

func DefaultConfig() Config {
	return Config{
		Identity: IdentityConfig{
			SessionFile: "~/.config/tally/session",
		},
		Calendar: CalendarConfig{
			Timezone:  "America/New_York",
			StartDate: "2026-01-10",
		},
		Store: StoreConfig{
			Backend:   BackendSQLite,
			DBPath:    "~/.local/share/tally/tally.db",
			PageSize:  1000,
			MaxOffset: 50000,
		},
		Export: ExportConfig{
			TimestampColumns: []string{"created_at", "inserted_at", "logged_at"},
			Dir:              ".",
			S3Region:         "us-east-1",
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds: 30,
		},
		Display: DisplayConfig{
			RefreshRateMS:      500,
			ActivityBufferSize: 50,
		},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8787",
		},
		Receiver: ReceiverConfig{
			GRPCPort: 4317,
			HTTPPort: 4318,
			Bind:     "127.0.0.1",
		},
		Events: EventsConfig{
			Subject: "tally.event.logged",
		},
	}
}
