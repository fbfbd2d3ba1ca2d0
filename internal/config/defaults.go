package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port":       8080,
			"static_dir": "",
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "text",
		},
		"timezone": "UTC",
		"store": map[string]interface{}{
			"backend": BackendSQLite,
			"path":    "nudge.db",
			"file":    "reminders.json",
			"nats": map[string]interface{}{
				"url":    "nats://127.0.0.1:4222",
				"bucket": "nudge",
			},
			"s3": map[string]interface{}{
				"region": "us-east-1",
			},
		},
		"sweep": map[string]interface{}{
			"enabled":        true,
			"interval":       "1m",
			"secret":         "",
			"trusted_header": "",
			"trusted_value":  "true",
			"rate_limit":     1.0,
			"rate_burst":     5,
		},
		"registry": map[string]interface{}{
			"reject_past_due": false,
		},
		"notify": map[string]interface{}{
			"backend": NotifyLog,
			"timeout": "10s",
			"postmark": map[string]interface{}{
				"api_url": "https://api.postmarkapp.com/email",
			},
			"emailjs": map[string]interface{}{
				"api_url": "https://api.emailjs.com/api/v1.0/email/send",
			},
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
