package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eReuse/DeviceWare/internal/config"
	"github.com/eReuse/DeviceWare/internal/models"
)

// maxResponseBody caps how much of a registry response is kept for logs
const maxResponseBody = 4096

// Sender performs the registry delivery. Failures are logged and
// absorbed: availability of the main system wins over guaranteed
// delivery to the registry.
type Sender struct {
	cfg    config.RegistryConfig
	http   *http.Client
	logger *zap.Logger
}

func NewSender(cfg config.RegistryConfig, logger *zap.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

// GenerateURL builds the registry endpoint for an event. Register has a
// fixed registration route; every other kind routes per device and per
// event type.
func (s *Sender) GenerateURL(unit *Unit) string {
	domain := strings.TrimRight(s.cfg.Domain, "/")
	if unit.Translated.Type == "Register" {
		return domain + "/api/devices/register/"
	}
	identifier := unit.Original.HID
	kind := models.EventKind(unit.Translated.Type).ResourcePath()
	return fmt.Sprintf("%s/api/devices/%s/%s", domain, identifier, kind)
}

// Post delivers one translated event. In debug mode it logs the
// would-be request instead of sending it.
func (s *Sender) Post(event TranslatedEvent, url string) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal registry event",
			zap.String("url", url),
			zap.Error(err),
		)
		return
	}

	if s.cfg.Debug {
		s.logger.Info("Registry dry-run, would post event",
			zap.String("url", url),
			zap.ByteString("event", payload),
		)
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("Failed to create registry request",
			zap.String("url", url),
			zap.Error(err),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.AgentUser != "" {
		req.SetBasicAuth(s.cfg.AgentUser, s.cfg.AgentPassword)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Error("Registry post failed",
			zap.String("url", url),
			zap.ByteString("event", payload),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("Registry rejected event",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("event", payload),
			zap.ByteString("response", body),
		)
		return
	}

	s.logger.Info("Registry accepted event",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("event", payload),
	)
}
