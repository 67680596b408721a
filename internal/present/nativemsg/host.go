package nativemsg

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
)

// MaxMessageSize is the largest frame the host accepts or emits.
const MaxMessageSize = 1 << 20

const (
	EventUpdated   = "updated"
	EventActivated = "activated"
	EventCheck     = "check"
)

var ErrMessageTooLarge = errors.New("native message exceeds 1 MiB")

type TabEvent struct {
	Type   string `json:"type"`
	TabID  int    `json:"tabId"`
	URL    string `json:"url"`
	Status string `json:"status,omitempty"`
}

// StatusSource projects tab status for a url. client.Client satisfies it.
type StatusSource interface {
	GetStatus(ctx context.Context, url string) (cryptoguard.TabStatus, error)
}

type Host struct {
	source StatusSource
	in     io.Reader
	out    io.Writer
}

func NewHost(source StatusSource, in io.Reader, out io.Writer) *Host {
	return &Host{source: source, in: in, out: out}
}

// ReadMessage reads one length-prefixed frame. The prefix is a native-endian
// uint32, which is little-endian on every platform browsers ship for.
func ReadMessage(r io.Reader) ([]byte, error) {
	var size uint32
	err := binary.Read(r, binary.LittleEndian, &size)
	if err != nil {
		return nil, err
	}
	if size > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	buf := make([]byte, size)
	_, err = io.ReadFull(r, buf)
	if err != nil {
		return nil, fmt.Errorf("short native message: %w", err)
	}
	return buf, nil
}

func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	err = binary.Write(w, binary.LittleEndian, uint32(len(payload)))
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// Handle maps a tab event to a badge. ok is false for events that need no reply.
func (h *Host) Handle(ctx context.Context, event TabEvent) (domain.Badge, bool) {
	switch event.Type {
	case EventUpdated:
		if event.Status != "complete" {
			return domain.Badge{}, false
		}
	case EventActivated, EventCheck:
	default:
		slog.DebugContext(ctx, "ignoring tab event", slog.String("type", event.Type), slog.String("module", "nativemsg"))
		return domain.Badge{}, false
	}

	if !cryptoguard.IsValidFlagURL(event.URL) {
		return domain.BadgeFor(event.TabID, domain.TabStatus{}), true
	}

	status, err := h.source.GetStatus(ctx, event.URL)
	if err != nil {
		slog.WarnContext(
			ctx, "status projection failed",
			slog.Int("tabId", event.TabID),
			slog.String("error", err.Error()),
			slog.String("module", "nativemsg"),
		)
		return domain.BadgeFor(event.TabID, domain.TabStatus{}), true
	}

	return domain.BadgeFor(event.TabID, domain.TabStatus{
		Domain:  status.Domain,
		Flagged: status.Flagged,
		Count:   status.Count,
	}), true
}

// Serve processes events until the browser closes stdin or ctx is done.
func (h *Host) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := ReadMessage(h.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var event TabEvent
		if err := json.Unmarshal(frame, &event); err != nil {
			slog.WarnContext(ctx, "malformed tab event", slog.String("error", err.Error()), slog.String("module", "nativemsg"))
			continue
		}

		badge, ok := h.Handle(ctx, event)
		if !ok {
			continue
		}

		if err := WriteMessage(h.out, badge); err != nil {
			return err
		}
	}
}
