package config

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
)

const (
	SinkHTTP  = "http"
	SinkLocal = "local"
)

const (
	defaultDispatchAddr         = "http://localhost:8080"
	defaultCheckDevicesInterval = 5000 * time.Millisecond
	defaultDispatchTimeout      = 2 * time.Second
	defaultSink                 = SinkHTTP
)

type PollerConfig struct {
	DispatchAddress      string
	Key                  string
	Sink                 string
	CheckDevicesInterval time.Duration
	DispatchTimeout      time.Duration
	Debug                bool
}

var _ ports.PollConfigProvider = PollerConfig{}

// PollConfig exposes the loop settings to the poller.
func (c PollerConfig) PollConfig(context.Context) (domain.PollConfig, error) {
	if c.CheckDevicesInterval < 0 {
		return domain.PollConfig{}, fmt.Errorf("check devices interval must be >= 0, got %v", c.CheckDevicesInterval)
	}
	return domain.PollConfig{CheckDevicesInterval: c.CheckDevicesInterval}, nil
}

// ENV > CLI > defaults
func LoadPollerConfig(args []string, out io.Writer) (PollerConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("poller", flag.ContinueOnError)
	fs.SetOutput(out)

	var addrOpt, keyOpt, sinkOpt, intervalOpt, timeoutOpt string
	var debugOpt bool

	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("dispatcher address (host:port or URL), default: %s", defaultDispatchAddr))
	fs.StringVar(&keyOpt, "k", "", "secret key for HashSHA256 header")
	fs.StringVar(&sinkOpt, "s", "", fmt.Sprintf("dispatch sink (%s|%s), default: %s", SinkHTTP, SinkLocal, defaultSink))
	fs.StringVar(&intervalOpt, "i", "", fmt.Sprintf("check devices interval in ms or Go duration, default: %d", defaultCheckDevicesInterval.Milliseconds()))
	fs.StringVar(&timeoutOpt, "t", "", fmt.Sprintf("dispatch request timeout, default: %s", defaultDispatchTimeout))
	fs.BoolVar(&debugOpt, "debug", false, "development logging")

	if err := fs.Parse(args); err != nil {
		return PollerConfig{}, err
	}

	addr := normalizeAddressURL(FromEnvOrFlag("DISPATCH_ADDRESS", addrOpt, defaultDispatchAddr), defaultDispatchAddr)
	if _, err := url.ParseRequestURI(addr); err != nil {
		return PollerConfig{}, fmt.Errorf("invalid dispatch address: %q", addr)
	}

	sink := strings.ToLower(FromEnvOrFlag("SINK", sinkOpt, defaultSink))
	if sink != SinkHTTP && sink != SinkLocal {
		return PollerConfig{}, fmt.Errorf("unknown sink %q", sink)
	}

	interval, err := FromEnvOrFlagDuration("CHECK_DEVICES_INTERVAL", intervalOpt, defaultCheckDevicesInterval, time.Millisecond)
	if err != nil {
		return PollerConfig{}, err
	}
	if interval < 0 {
		return PollerConfig{}, fmt.Errorf("check devices interval must be >= 0, got %v", interval)
	}

	timeout, err := FromEnvOrFlagDuration("DISPATCH_TIMEOUT", timeoutOpt, defaultDispatchTimeout, time.Second)
	if err != nil {
		return PollerConfig{}, err
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}

	return PollerConfig{
		DispatchAddress:      addr,
		Key:                  FromEnvOrFlag("KEY", keyOpt, ""),
		Sink:                 sink,
		CheckDevicesInterval: interval,
		DispatchTimeout:      timeout,
		Debug:                FromEnvOrFlagBool("DEBUG", debugOpt, false),
	}, nil
}
