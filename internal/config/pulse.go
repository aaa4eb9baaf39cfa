package config

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/misc"
)

const (
	defaultListenAddr        = ":8090"
	defaultBackend           = "http://127.0.0.1:9090"
	defaultTopics            = "traffic,memory,logs:info,connections"
	defaultPollInterval      = 5
	defaultHostInterval      = 2
	defaultHeartbeatInterval = 30
	defaultHistorySize       = 60
	defaultLogBuffer         = 1000
	defaultProfilesFile      = "backends.json"
	defaultLogLevel          = "info"
)

type PulseConfig struct {
	Address           string
	Backend           domain.Target
	DSN               string
	ProfilesFile      string
	JournalFile       string
	WebhookURL        string
	APIToken          string
	LogLevel          string
	Topics            []domain.Topic
	PollInterval      time.Duration
	HostInterval      time.Duration
	HeartbeatInterval time.Duration
	HistorySize       int
	LogBuffer         int
}

// ENV > CLI > defaults
func LoadPulseConfig(args []string, out io.Writer) (PulseConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("pulse", flag.ContinueOnError)
	fs.SetOutput(out)

	var addrOpt, backendOpt, secretOpt, topicsOpt string
	var dsnOpt, profilesOpt, journalOpt, webhookOpt, tokenOpt, levelOpt string
	var pollOpt, hostOpt, hbOpt, historyOpt, bufOpt int

	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("local API listen address, default: %s", defaultListenAddr))
	fs.StringVar(&backendOpt, "b", "", fmt.Sprintf("daemon controller address (host:port or URL), default: %s", defaultBackend))
	fs.StringVar(&secretOpt, "s", "", "daemon API secret")
	fs.StringVar(&topicsOpt, "t", "", fmt.Sprintf("comma separated topics, default: %s", defaultTopics))
	fs.IntVar(&pollOpt, "p", -1, fmt.Sprintf("connections poll interval in seconds (0 - off), default: %d", defaultPollInterval))
	fs.IntVar(&hostOpt, "i", -1, fmt.Sprintf("host counters interval in seconds (0 - off), default: %d", defaultHostInterval))
	fs.IntVar(&hbOpt, "hb", 0, fmt.Sprintf("heartbeat interval in seconds, default: %d", defaultHeartbeatInterval))
	fs.IntVar(&historyOpt, "n", 0, fmt.Sprintf("rate history size, default: %d", defaultHistorySize))
	fs.IntVar(&bufOpt, "l", 0, fmt.Sprintf("log buffer size, default: %d", defaultLogBuffer))
	fs.StringVar(&dsnOpt, "d", "", "DATABASE_DSN for Postgres profile storage")
	fs.StringVar(&profilesOpt, "f", "", fmt.Sprintf("profiles file, default: %s", defaultProfilesFile))
	fs.StringVar(&journalOpt, "j", "", "connectivity journal file (JSON lines)")
	fs.StringVar(&webhookOpt, "w", "", "webhook URL for connectivity events")
	fs.StringVar(&tokenOpt, "k", "", "bearer token required by the local API")
	fs.StringVar(&levelOpt, "v", "", fmt.Sprintf("log level, default: %s", defaultLogLevel))

	if err := fs.Parse(args); err != nil {
		return PulseConfig{}, err
	}

	addr := normalizeListenAddr(FromEnvOrFlag("ADDRESS", addrOpt, defaultListenAddr))
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return PulseConfig{}, fmt.Errorf("invalid listen address: %q", addr)
	}

	backend, err := domain.ParseTarget(
		FromEnvOrFlag("BACKEND", backendOpt, defaultBackend),
		FromEnvOrFlag("SECRET", secretOpt, ""),
	)
	if err != nil {
		return PulseConfig{}, fmt.Errorf("invalid backend: %w", err)
	}

	topics, err := parseTopics(FromEnvOrFlag("TOPICS", topicsOpt, defaultTopics))
	if err != nil {
		return PulseConfig{}, err
	}

	poll, err := FromEnvOrFlagSeconds("POLL_INTERVAL", pollOpt, -1, defaultPollInterval*time.Second)
	if err != nil {
		return PulseConfig{}, err
	}
	if poll < 0 {
		return PulseConfig{}, fmt.Errorf("poll interval must be >= 0, got %v", poll)
	}
	host, err := FromEnvOrFlagSeconds("HOST_INTERVAL", hostOpt, -1, defaultHostInterval*time.Second)
	if err != nil {
		return PulseConfig{}, err
	}
	if host < 0 {
		return PulseConfig{}, fmt.Errorf("host interval must be >= 0, got %v", host)
	}
	hb, err := FromEnvOrFlagSeconds("HEARTBEAT_INTERVAL", hbOpt, 0, defaultHeartbeatInterval*time.Second)
	if err != nil {
		return PulseConfig{}, err
	}
	if hb <= 0 {
		return PulseConfig{}, fmt.Errorf("heartbeat interval must be > 0, got %v", hb)
	}

	level := strings.ToLower(FromEnvOrFlag("LOG_LEVEL", levelOpt, defaultLogLevel))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return PulseConfig{}, fmt.Errorf("invalid log level: %q", level)
	}

	webhook := FromEnvOrFlag("WEBHOOK_URL", webhookOpt, "")
	if webhook != "" {
		if _, err := url.ParseRequestURI(webhook); err != nil {
			return PulseConfig{}, fmt.Errorf("invalid webhook url: %q", webhook)
		}
	}

	return PulseConfig{
		Address:           addr,
		Backend:           backend,
		Topics:            topics,
		PollInterval:      poll,
		HostInterval:      host,
		HeartbeatInterval: hb,
		HistorySize:       FromEnvOrFlagInt("HISTORY_SIZE", historyOpt, defaultHistorySize, 1),
		LogBuffer:         FromEnvOrFlagInt("LOG_BUFFER", bufOpt, defaultLogBuffer, 1),
		DSN:               misc.Getenv("DATABASE_DSN", strings.TrimSpace(dsnOpt)),
		ProfilesFile:      FromEnvOrFlag("PROFILES_FILE", profilesOpt, defaultProfilesFile),
		JournalFile:       FromEnvOrFlag("JOURNAL_FILE", journalOpt, ""),
		WebhookURL:        webhook,
		APIToken:          FromEnvOrFlag("API_TOKEN", tokenOpt, ""),
		LogLevel:          level,
	}, nil
}

func parseTopics(s string) ([]domain.Topic, error) {
	seen := make(map[domain.Topic]struct{})
	var out []domain.Topic
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := domain.ParseTopic(part)
		if err != nil {
			return nil, err
		}
		if !t.Streamable() {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotStreamable, t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no topics configured", domain.ErrInvalidTopic)
	}
	return out, nil
}

func normalizeListenAddr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultListenAddr
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}
