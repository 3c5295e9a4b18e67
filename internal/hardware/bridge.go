package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// BridgeSensor talks to the fingerprint driver process over a unix socket.
// The driver owns the AS608 UART protocol and template storage; this side
// only exchanges small JSON commands, one per connection.
type BridgeSensor struct {
	socketPath string
	timeout    time.Duration
}

// NewBridgeSensor creates a sensor client for the driver's unix socket.
func NewBridgeSensor(socketPath string, timeout time.Duration) *BridgeSensor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BridgeSensor{socketPath: socketPath, timeout: timeout}
}

type bridgeRequest struct {
	Op         string `json:"op"` // verify | enroll | delete | ping
	TemplateID int    `json:"template_id,omitempty"`
}

type bridgeResponse struct {
	OK         bool    `json:"ok"`
	Match      bool    `json:"match"`
	TemplateID int     `json:"template_id"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

func (s *BridgeSensor) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.roundTrip(ctx, bridgeRequest{Op: "ping"})
	return err == nil
}

func (s *BridgeSensor) Verify(ctx context.Context) (*MatchResult, error) {
	resp, err := s.roundTrip(ctx, bridgeRequest{Op: "verify"})
	if err != nil {
		return nil, err
	}
	if !resp.Match {
		return nil, ErrNoMatch
	}
	return &MatchResult{TemplateID: resp.TemplateID, Confidence: resp.Confidence}, nil
}

func (s *BridgeSensor) Enroll(ctx context.Context, templateID int) error {
	_, err := s.roundTrip(ctx, bridgeRequest{Op: "enroll", TemplateID: templateID})
	return err
}

func (s *BridgeSensor) DeleteTemplate(ctx context.Context, templateID int) error {
	_, err := s.roundTrip(ctx, bridgeRequest{Op: "delete", TemplateID: templateID})
	return err
}

func (s *BridgeSensor) roundTrip(ctx context.Context, req bridgeRequest) (*bridgeResponse, error) {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", s.socketPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint bridge unreachable: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("fingerprint bridge write: %w", err)
	}
	var resp bridgeResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("fingerprint bridge read: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("fingerprint bridge: %s", resp.Error)
	}
	return &resp, nil
}

var _ FingerprintSensor = (*BridgeSensor)(nil)
