package config

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/devpoll/internal/misc"
)

const (
	defaultListenAddr    = ":8080"
	defaultFilePath      = "devices-db.json"
	defaultDSN           = ""
	defaultStoreInterval = 300
	defaultRestore       = false
	defaultCheckTimeout  = 10 * time.Second
)

type DispatcherConfig struct {
	Address       string
	File          string
	DSN           string
	Key           string
	StoreInterval time.Duration
	AuditFile     string
	AuditURL      string
	CheckTimeout  time.Duration
	Restore       bool
}

// CLI > ENV > defaults
func LoadDispatcherConfig(args []string, out io.Writer) (DispatcherConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("dispatcher", flag.ContinueOnError)
	fs.SetOutput(out)

	var addrOpt, fileOpt, dsnOpt, keyOpt, timeoutOpt, auditFileOpt, auditURLOpt string
	var ivalOpt int
	var restoreOpt bool

	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("HTTP listen address, default: %s", defaultListenAddr))
	fs.StringVar(&fileOpt, "f", "", fmt.Sprintf("FILE_STORAGE_PATH, default: %s", defaultFilePath))
	fs.StringVar(&dsnOpt, "d", "", "DATABASE_DSN for Postgres")
	fs.StringVar(&keyOpt, "k", "", "secret key for HashSHA256 verification")
	fs.StringVar(&timeoutOpt, "c", "", fmt.Sprintf("CHECK_TIMEOUT for one device check, default: %s", defaultCheckTimeout))
	fs.IntVar(&ivalOpt, "i", -1, fmt.Sprintf("STORE_INTERVAL seconds (0 - after every check), default: %d", defaultStoreInterval))
	fs.StringVar(&auditFileOpt, "audit-file", "", "AUDIT_FILE to append check events to")
	fs.StringVar(&auditURLOpt, "audit-url", "", "AUDIT_URL to post check events to")
	fs.BoolVar(&restoreOpt, "r", false, fmt.Sprintf("RESTORE on start (true/false), default: %t", defaultRestore))

	if err := fs.Parse(args); err != nil {
		return DispatcherConfig{}, err
	}

	addr := addrOpt
	if strings.TrimSpace(addr) == "" {
		addr = misc.Getenv("ADDRESS", defaultListenAddr)
	}
	addr = normalizeListenAddr(addr)
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return DispatcherConfig{}, fmt.Errorf("invalid listen address: %q", addr)
	}

	file := strings.TrimSpace(fileOpt)
	if file == "" {
		file = misc.Getenv("FILE_STORAGE_PATH", defaultFilePath)
	}

	dsn := strings.TrimSpace(dsnOpt)
	if dsn == "" {
		dsn = misc.Getenv("DATABASE_DSN", defaultDSN)
	}

	key := strings.TrimSpace(keyOpt)
	if key == "" {
		key = misc.Getenv("KEY", "")
	}

	var interval time.Duration
	if ivalOpt >= 0 {
		interval = time.Duration(ivalOpt) * time.Second
	} else {
		interval = misc.GetDuration("STORE_INTERVAL", time.Duration(defaultStoreInterval)*time.Second, time.Second)
	}
	if interval < 0 {
		return DispatcherConfig{}, fmt.Errorf("store interval must be >= 0, got %v", interval)
	}

	timeout := defaultCheckTimeout
	if v := strings.TrimSpace(timeoutOpt); v != "" {
		d, err := misc.ParseDuration(v, time.Second)
		if err != nil {
			return DispatcherConfig{}, fmt.Errorf("check timeout: %w", err)
		}
		timeout = d
	} else {
		timeout = misc.GetDuration("CHECK_TIMEOUT", defaultCheckTimeout, time.Second)
	}
	if timeout <= 0 {
		return DispatcherConfig{}, fmt.Errorf("check timeout must be > 0, got %v", timeout)
	}

	auditFile := strings.TrimSpace(auditFileOpt)
	if auditFile == "" {
		auditFile = misc.Getenv("AUDIT_FILE", "")
	}
	auditURL := strings.TrimSpace(auditURLOpt)
	if auditURL == "" {
		auditURL = misc.Getenv("AUDIT_URL", "")
	}
	if auditURL != "" {
		if _, err := url.ParseRequestURI(auditURL); err != nil {
			return DispatcherConfig{}, fmt.Errorf("invalid audit url: %q", auditURL)
		}
	}

	restore := restoreOpt
	if !restore {
		restore = misc.GetBool("RESTORE", defaultRestore)
	}

	return DispatcherConfig{
		Address:       addr,
		File:          file,
		DSN:           dsn,
		Key:           key,
		StoreInterval: interval,
		AuditFile:     auditFile,
		AuditURL:      auditURL,
		CheckTimeout:  timeout,
		Restore:       restore,
	}, nil
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
