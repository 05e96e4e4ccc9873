// Package urlinfo announces the titles of web pages linked in channels.
package urlinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/telemetry"
)

const (
	maxURLs        = 3
	maxTitleLength = 128
	maxRedirects   = 5

	defaultTimeout   = 5 * time.Second
	defaultMaxBytes  = 640 << 10
	defaultUserAgent = "Mozilla/5.0 (compatible; cappuccino; +https://github.com/onnwee/cappuccino)"
)

// Fetch outcomes reported to telemetry.IncURLFetch.
const (
	OutcomeTitle    = "title"
	OutcomeNoTitle  = "no_title"
	OutcomeStatus   = "status"
	OutcomeError    = "error"
	OutcomeBlocked  = "blocked"
	OutcomeSkipped  = "skipped"
	OutcomeTooLarge = "too_large"
)

var (
	urlPattern  = regexp.MustCompile(`(?i)https?://\S+`)
	spaces      = regexp.MustCompile(`\s+`)
	braces      = [][2]string{{"{", "}"}, {"<", ">"}, {"[", "]"}, {"(", ")"}}
	allowedMain = map[string]bool{"text": true, "video": true, "application": true}
	htmlTypes   = map[string]bool{"text/html": true, "application/xhtml+xml": true}

	errNotPublic = errors.New("address is not publicly routable")
	errTooLarge  = errors.New("response too large")

	// Shared address space (RFC 6598) is not covered by net.IP.IsPrivate.
	sharedSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}
)

// Config controls the urlinfo plugin. Zero values select defaults.
type Config struct {
	Timeout       time.Duration
	MaxBytes      int64
	UserAgent     string
	IgnoreNicks   []string
	IgnoreHosts   []string
	CommandPrefix string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// Plugin is the urlinfo plugin.
type Plugin struct {
	cfg         Config
	client      *http.Client
	ignoreNicks map[string]bool
	ignoreHosts map[string]bool
}

// New returns a plugin whose HTTP client refuses to connect to loopback,
// private and other non-public addresses.
func New(cfg Config) *Plugin {
	cfg = cfg.withDefaults()
	return newPlugin(cfg, newClient(cfg.Timeout))
}

func newPlugin(cfg Config, client *http.Client) *Plugin {
	cfg = cfg.withDefaults()
	p := &Plugin{cfg: cfg, client: client, ignoreNicks: map[string]bool{}, ignoreHosts: map[string]bool{}}
	for _, n := range cfg.IgnoreNicks {
		p.ignoreNicks[strings.ToLower(n)] = true
	}
	for _, h := range cfg.IgnoreHosts {
		p.ignoreHosts[strings.ToLower(h)] = true
	}
	return p
}

func newClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: timeout,
		// Runs after name resolution, so every address actually dialed is checked.
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || !isPublic(ip) {
				return errNotPublic
			}
			return nil
		},
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       30 * time.Second,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

func isPublic(ip net.IP) bool {
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback() && !sharedSpace.Contains(ip)
}

func (p *Plugin) Name() string { return "urlinfo" }

// Handle implements bot.Plugin. Titles of up to three links are fetched in
// parallel and posted as one line in link order.
func (p *Plugin) Handle(ctx context.Context, ev bot.Event) []bot.Reply {
	if ev.Kind != bot.KindMessage || !ev.Channel || strings.EqualFold(ev.Nick, ev.Self) {
		return nil
	}
	if p.ignoreNicks[strings.ToLower(ev.Nick)] {
		return nil
	}
	text := bot.StripCTCPAction(ev.Text)
	if p.cfg.CommandPrefix != "" && strings.HasPrefix(text, p.cfg.CommandPrefix) {
		return nil
	}
	if ev.Self != "" && strings.HasPrefix(strings.ToLower(text), strings.ToLower(ev.Self)+": ") {
		return nil
	}
	urls := p.extractURLs(text)
	if len(urls) == 0 {
		return nil
	}

	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "urlinfo"))
	log.Debug("retrieving page titles", slog.Any("urls", urls))

	results := make([]string, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			results[i] = p.describe(ctx, log, u)
			return nil
		})
	}
	_ = g.Wait()

	var messages []string
	for _, r := range results {
		if r != "" {
			messages = append(messages, r)
		}
	}
	if len(messages) == 0 {
		return nil
	}
	return []bot.Reply{bot.Say(ev.Target, strings.Join(messages, bot.Colorize("grey", " | ")))}
}

// extractURLs returns the distinct links in text, cleaned of trailing
// punctuation, minus ignored hosts, capped at maxURLs.
func (p *Plugin) extractURLs(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, raw := range urlPattern.FindAllString(text, -1) {
		u := cleanURL(raw)
		if seen[u] {
			continue
		}
		seen[u] = true
		parsed, err := url.Parse(u)
		if err != nil || parsed.Hostname() == "" || p.ignoreHosts[strings.ToLower(parsed.Hostname())] {
			continue
		}
		urls = append(urls, u)
		if len(urls) == maxURLs {
			break
		}
	}
	return urls
}

func cleanURL(u string) string {
	u = strings.TrimRight(u, "'.,\"\x01")
	for _, b := range braces {
		if !strings.Contains(u, b[0]) {
			u = strings.TrimRight(u, b[1])
		}
	}
	return u
}

// describe returns the announcement for one link, or "" when nothing should
// be said about it.
func (p *Plugin) describe(ctx context.Context, log *slog.Logger, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "urlinfo", "urlinfo.fetch", attribute.String("url.host", host))
	defer span.End()

	info, err := p.fetch(ctx, rawURL)
	switch {
	case errors.Is(err, errNotPublic):
		telemetry.IncURLFetch(OutcomeBlocked)
		log.Debug("refusing non-public address", slog.String("host", host))
		return ""
	case errors.Is(err, errTooLarge):
		telemetry.IncURLFetch(OutcomeTooLarge)
		return fmt.Sprintf("[ %s ] %s.", bot.Colorize("red", host),
			bot.Bold(fmt.Sprintf("Couldn't find the page title within %s", humanize.Bytes(uint64(p.cfg.MaxBytes)))))
	case err != nil:
		telemetry.IncURLFetch(OutcomeError)
		telemetry.RecordError(span, err)
		log.Debug("fetch failed", slog.String("host", host), slog.Any("err", err))
		return fmt.Sprintf("[ %s ] %s.", bot.Colorize("red", host), bot.Bold(shortError(err)))
	}
	telemetry.SetSpanHTTPStatus(span, info.status)

	switch {
	case info.status != http.StatusOK:
		telemetry.IncURLFetch(OutcomeStatus)
		return fmt.Sprintf("[ %s ] %s %s.", bot.Colorize("red", host),
			bot.Bold(strconv.Itoa(info.status)), bot.Bold(http.StatusText(info.status)))
	case info.skipped:
		telemetry.IncURLFetch(OutcomeSkipped)
		log.Debug("content type not announced", slog.String("host", host), slog.String("type", info.mediaType))
		return ""
	case info.title == "":
		telemetry.IncURLFetch(OutcomeNoTitle)
		return ""
	}

	telemetry.IncURLFetch(OutcomeTitle)
	reply := fmt.Sprintf("[ %s ] %s (%s)", bot.Colorize("green", host), bot.Bold(info.title), info.mediaType)
	if info.size > 0 && !htmlTypes[info.mediaType] {
		reply += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.size)))
	}
	return reply
}

type pageInfo struct {
	status    int
	mediaType string
	size      int64
	title     string
	skipped   bool
}

func (p *Plugin) fetch(ctx context.Context, rawURL string) (pageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return pageInfo{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return pageInfo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	info := pageInfo{status: resp.StatusCode, size: resp.ContentLength}
	if resp.StatusCode != http.StatusOK {
		return info, nil
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		info.mediaType, _, _ = mime.ParseMediaType(ct)
		mainType, _, _ := strings.Cut(info.mediaType, "/")
		if !allowedMain[mainType] {
			info.skipped = true
			return info, nil
		}
	}

	var title string
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		_, params, _ := mime.ParseMediaType(cd)
		title = params["filename"]
	} else if htmlTypes[info.mediaType] || info.mediaType == "text/plain" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBytes+1))
		if err != nil {
			return info, fmt.Errorf("read body: %w", err)
		}
		title = pageTitle(body)
		if title == "" && info.mediaType == "text/plain" {
			title = string(body)
		}
		if title == "" && int64(len(body)) > p.cfg.MaxBytes {
			return info, errTooLarge
		}
	}
	info.title = cleanTitle(title)
	return info, nil
}

// pageTitle returns the text of the first <title> element, falling back to
// the og:title meta property.
func pageTitle(body []byte) string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	var title, ogTitle string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if c := n.FirstChild; c != nil && c.Type == html.TextNode {
					title = c.Data
				}
				return
			case "meta":
				if ogTitle == "" && attr(n, "property") == "og:title" {
					ogTitle = attr(n, "content")
				}
			case "svg":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if strings.TrimSpace(title) == "" {
		return ogTitle
	}
	return title
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// cleanTitle flattens title to a single unformatted line of at most
// maxTitleLength runes.
func cleanTitle(title string) string {
	title = strings.TrimSpace(spaces.ReplaceAllString(bot.Unstyle(title), " "))
	if utf8.RuneCountInString(title) > maxTitleLength {
		r := []rune(title)
		title = string(r[:maxTitleLength-3]) + "..."
	}
	return title
}

func shortError(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	case errors.As(err, &dnsErr):
		return "Unknown host"
	case strings.Contains(err.Error(), "too many redirects"):
		return "Too many redirects"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Connection refused"
	default:
		return "Request failed"
	}
}
