package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/debugger"
	e "github.com/fansqz/inspector-debugger/error"
	"github.com/sirupsen/logrus"
)

// MinProtocolVersion 支持的最低inspector协议版本
const MinProtocolVersion = ">= 1.1"

// TargetDescription /json/list返回的一个调试目标
type TargetDescription struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Kind 目标是浏览器页面还是node.js
func (t *TargetDescription) Kind() constants.RuntimeKind {
	if t.Type == "node" {
		return constants.RuntimeNode
	}
	return constants.RuntimeBrowser
}

// TargetInfo 转换成调试会话使用的Target
func (t *TargetDescription) TargetInfo() *debugger.TargetInfo {
	return debugger.NewTargetInfo(t.ID, t.Kind())
}

// VersionInfo /json/version的返回值
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	V8Version            string `json:"V8-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// CheckProtocolVersion 校验协议版本是否满足MinProtocolVersion
func CheckProtocolVersion(version string) error {
	constraint, err := semver.NewConstraint(MinProtocolVersion)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q: %v", e.ErrProtocolVersionNotSupported, version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", e.ErrProtocolVersionNotSupported, version, MinProtocolVersion)
	}
	return nil
}

// Discovery 通过inspector的HTTP接口查找调试目标
type Discovery struct {
	endpoint string
	client   *http.Client
}

// NewDiscovery endpoint形如http://127.0.0.1:9222
func NewDiscovery(endpoint string, client *http.Client) *Discovery {
	if client == nil {
		client = http.DefaultClient
	}
	return &Discovery{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}
}

func (d *Discovery) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("error getting %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("error getting %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	return nil
}

func (d *Discovery) Version(ctx context.Context) (*VersionInfo, error) {
	version := &VersionInfo{}
	if err := d.getJSON(ctx, "/json/version", version); err != nil {
		return nil, err
	}
	return version, nil
}

func (d *Discovery) List(ctx context.Context) ([]TargetDescription, error) {
	var targets []TargetDescription
	if err := d.getJSON(ctx, "/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// Discover 校验协议版本，返回第一个URL包含urlFilter的页面或node.js目标
func (d *Discovery) Discover(ctx context.Context, urlFilter string) (*TargetDescription, error) {
	version, err := d.Version(ctx)
	if err != nil {
		return nil, err
	}
	if err := CheckProtocolVersion(version.ProtocolVersion); err != nil {
		return nil, err
	}
	targets, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	for i, target := range targets {
		if target.Type != "page" && target.Type != "node" {
			continue
		}
		if target.WebSocketDebuggerURL == "" || !strings.Contains(target.URL, urlFilter) {
			continue
		}
		logrus.Infof("[CDPAgent] found target %s (%s) %s", target.ID, target.Type, target.URL)
		return &targets[i], nil
	}
	return nil, fmt.Errorf("%w: url filter %q", e.ErrTargetNotFound, urlFilter)
}
