package accounts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	logx "gaeakeeper/pkg/logx"
)

// Account is one identity kept active against the remote service.
// Immutable for the lifetime of a run; uniquely keyed by UID.
type Account struct {
	Name      string
	BrowserID string
	Token     string
	Proxy     string // normalized proxy URI, empty means direct
	UID       string
}

// Masked returns the display name with the middle blanked out for logs.
func (a Account) Masked() string { return Mask(a.Name) }

// Mask hides the middle of an identity string (first 3 + *** + last 3).
func Mask(s string) string {
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:3] + "***" + s[len(s)-3:]
}

var expectedHeader = []string{"Name", "Browser_ID", "Token", "Proxy", "UID"}

// Load reads the CSV account list. Rows missing a required field are skipped
// with a warning; a malformed header is fatal (the fleet cannot start
// without a usable account list). When useProxy is false the proxy column is
// ignored entirely.
func Load(path string, useProxy bool, log logx.Logger) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(expectedHeader)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read accounts header: %w", err)
	}
	for i, want := range expectedHeader {
		if i >= len(header) || strings.TrimSpace(header[i]) != want {
			return nil, fmt.Errorf("invalid accounts header %v, want %v", header, expectedHeader)
		}
	}

	var out []Account
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			// A bad row (wrong column count, quoting error) costs only
			// itself; the rest of the fleet still loads.
			log.Warn("skipping malformed account row",
				logx.Int("line", line),
				logx.Err(err))
			continue
		}

		acc := Account{
			Name:      strings.TrimSpace(rec[0]),
			BrowserID: strings.TrimSpace(rec[1]),
			Token:     strings.TrimSpace(rec[2]),
			UID:       strings.TrimSpace(rec[4]),
		}
		if useProxy {
			acc.Proxy = NormalizeProxy(rec[3])
		}

		if acc.Name == "" || acc.BrowserID == "" || acc.Token == "" || acc.UID == "" {
			log.Warn("skipping account with missing required fields",
				logx.Int("line", line),
				logx.String("account", Mask(acc.Name)))
			continue
		}
		out = append(out, acc)
	}

	return out, nil
}

var proxySchemes = []string{"http://", "https://", "socks4://", "socks5://"}

// NormalizeProxy normalizes a proxy URI: known schemes pass through, a bare
// host:port gets "http://" prepended, empty stays empty.
func NormalizeProxy(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}
	for _, scheme := range proxySchemes {
		if strings.HasPrefix(p, scheme) {
			return p
		}
	}
	return "http://" + p
}
