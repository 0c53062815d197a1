package config

import "time"

// Default returns the configuration observed against the retail client.
func Default() *Config {
	return &Config{
		LogDir: "Logs",
		DNS: DNS{
			Enabled:         true,
			Listen:          "0.0.0.0:53",
			Upstream:        "1.1.1.1:53",
			UpstreamTimeout: 5 * time.Second,
			Targets: []string{
				"destinygame.com",
				"bungie.net",
				"demonware.net",
				"deadorbit.net",
				"gravityshavings.net",
			},
			PassThrough: []string{
				"destiny-stun.*",
				"stun*.signon.*",
			},
		},
		HTTP: HTTP{
			Enabled:     true,
			Listen:      "0.0.0.0:80",
			Mode:        ModeForge,
			Strategy:    "zero",
			SignOnPaths: []string{"/SignOn", "/Sign.On"},
			ReadTimeout: 30 * time.Second,
			Live: Live{
				Upstream:    "208.81.26.45:80",
				DialTimeout: 10 * time.Second,
				IOTimeout:   30 * time.Second,
				HostAliases: []HostAlias{
					{From: "deadorbit.net", To: "gravityshavings.net"},
				},
				UserAgent: "DestinyPS3",
			},
			Stub: Stub{
				Files: []string{"stubs/signon_1.bin", "stubs/signon_2.bin"},
			},
		},
		Journal: Journal{
			Path:      "Logs",
			Retention: 7 * 24 * time.Hour,
		},
	}
}
