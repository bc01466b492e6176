package scan

import (
	"errors"
	"fmt"

	"github.com/yorozuya-cybersecurity/ecomprobe/internal/scanners"
)

var ErrUnknownSuite = errors.New("scan: unknown test suite")

// SuiteAll selects every probe.
const SuiteAll = "all"

var suites = map[string]func() []scanners.Probe{
	"sql":     func() []scanners.Probe { return []scanners.Probe{scanners.SQLInjection{}} },
	"xss":     func() []scanners.Probe { return []scanners.Probe{scanners.XSS{}} },
	"auth":    func() []scanners.Probe { return []scanners.Probe{scanners.AuthBypass{}, scanners.AuthorizationBypass{}} },
	"cors":    func() []scanners.Probe { return []scanners.Probe{scanners.CORS{}} },
	"headers": func() []scanners.Probe { return []scanners.Probe{scanners.SecurityHeaders{}} },
	"info":    func() []scanners.Probe { return []scanners.Probe{scanners.InfoDisclosure{}} },
	"methods": func() []scanners.Probe { return []scanners.Probe{scanners.HTTPMethods{}} },
	SuiteAll:  scanners.All,
}

// SuiteNames lists the accepted --test values.
func SuiteNames() []string {
	return []string{"sql", "xss", "auth", "cors", "headers", "info", "methods", SuiteAll}
}

// Suite returns the probes for a --test value.
func Suite(name string) ([]scanners.Probe, error) {
	build, ok := suites[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, name)
	}
	return build(), nil
}
