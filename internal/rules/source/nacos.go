package source

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

import (
	"gopkg.in/yaml.v3"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

const defaultNacosGroup = "DEFAULT_GROUP"

// NacosSource pulls bot policies from Nacos config center via HTTP.
type NacosSource struct {
	cfg    config.NacosCfg
	client *http.Client
	log    *slog.Logger
}

func NewNacosSource(cfg config.NacosCfg) *NacosSource {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NacosSource{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    slog.Default(),
	}
}

func (s *NacosSource) Fetch(ctx context.Context) (PolicyPayload, error) {
	if !s.cfg.Enabled() {
		return PolicyPayload{}, errors.New("nacos is disabled")
	}

	reqURL, err := s.buildURL()
	if err != nil {
		return PolicyPayload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return PolicyPayload{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return PolicyPayload{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PolicyPayload{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return PolicyPayload{}, fmt.Errorf("nacos fetch failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	version := resp.Header.Get("Content-MD5")
	if version == "" {
		sum := md5.Sum(body)
		version = fmt.Sprintf("%x", sum[:])
	}

	policy, err := parsePolicy(body, s.cfg.Format)
	if err != nil {
		return PolicyPayload{}, err
	}

	return PolicyPayload{
		Policy:  policy,
		Version: version,
	}, nil
}

func (s *NacosSource) buildURL() (string, error) {
	base, err := url.Parse(s.cfg.Addr)
	if err != nil {
		return "", err
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/nacos/v1/cs/configs"

	group := s.cfg.Group
	if group == "" {
		group = defaultNacosGroup
	}

	q := base.Query()
	q.Set("dataId", s.cfg.DataID)
	q.Set("group", group)
	if s.cfg.Namespace != "" {
		q.Set("tenant", s.cfg.Namespace)
	}
	if s.cfg.Username != "" {
		q.Set("username", s.cfg.Username)
		q.Set("password", s.cfg.Password)
	}
	base.RawQuery = q.Encode()

	return base.String(), nil
}

func parsePolicy(raw []byte, format string) (config.BotPolicy, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return config.BotPolicy{}, errors.New("empty policy payload")
	}

	format = strings.ToLower(strings.TrimSpace(format))

	if format == "json" || format == "" {
		if p, ok := tryParseJSON(trimmed); ok {
			return p, nil
		}
		if format == "json" {
			return config.BotPolicy{}, errors.New("invalid json policy payload")
		}
	}

	if format == "yaml" || format == "" {
		if p, ok := tryParseYAML(trimmed); ok {
			return p, nil
		}
		if format == "yaml" {
			return config.BotPolicy{}, errors.New("invalid yaml policy payload")
		}
	}

	slog.Warn("failed to parse policy payload; unknown format", "format", format)
	return config.BotPolicy{}, errors.New("unsupported policy payload format")
}

// Both a bare policy and one wrapped under a "bot" key are accepted.
func tryParseJSON(raw []byte) (config.BotPolicy, bool) {
	var wrapper struct {
		Bot *config.BotPolicy `json:"bot"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Bot != nil && !isEmpty(*wrapper.Bot) {
		return *wrapper.Bot, true
	}
	var p config.BotPolicy
	if err := json.Unmarshal(raw, &p); err == nil && !isEmpty(p) {
		return p, true
	}
	return config.BotPolicy{}, false
}

func tryParseYAML(raw []byte) (config.BotPolicy, bool) {
	var wrapper struct {
		Bot *config.BotPolicy `yaml:"bot"`
	}
	if err := yaml.Unmarshal(raw, &wrapper); err == nil && wrapper.Bot != nil && !isEmpty(*wrapper.Bot) {
		return *wrapper.Bot, true
	}
	var p config.BotPolicy
	if err := yaml.Unmarshal(raw, &p); err == nil && !isEmpty(p) {
		return p, true
	}
	return config.BotPolicy{}, false
}

func isEmpty(p config.BotPolicy) bool {
	return p.MinUserAgentLength == 0 &&
		len(p.Allow) == 0 && len(p.Deny) == 0 &&
		len(p.Mobile) == 0 && len(p.Desktop) == 0 &&
		len(p.RequiredHeaders) == 0 && len(p.FetchMetadataHeaders) == 0 &&
		len(p.OwnedDomains) == 0
}
